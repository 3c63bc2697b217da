package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/taskledger/internal/ir"
)

// Scenario defines a ledger test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Committee lists the authorized member names, at most ir.MaxCommittee.
	Committee []string `yaml:"committee"`

	// Steps are executed in order against a fresh ledger.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and event log.
	// Supported types: status, result, event_count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one ledger call. Exactly one of Submit and Attest is set.
type Step struct {
	Submit *SubmitStep `yaml:"submit,omitempty"`
	Attest *AttestStep `yaml:"attest,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// SubmitStep submits a task.
type SubmitStep struct {
	Requester string `yaml:"requester"`
	ModelID   string `yaml:"model_id,omitempty"`
	Input     string `yaml:"input,omitempty"`

	// ModelIDLen and InputLen, when set, replace ModelID and Input with
	// filler of exactly that many bytes.
	ModelIDLen int `yaml:"model_id_len,omitempty"`
	InputLen   int `yaml:"input_len,omitempty"`
}

// AttestStep submits an attestation signed by the named members.
type AttestStep struct {
	TaskID     uint64   `yaml:"task_id"`
	OutputHash string   `yaml:"output_hash"`
	Signers    []string `yaml:"signers"`

	// Forge lists signers whose signature is made over a different output
	// hash, so it fails verification.
	Forge []string `yaml:"forge,omitempty"`
}

// Expect specifies a step's expected outcome.
type Expect struct {
	// TaskID is the id a submit must return.
	TaskID *uint64 `yaml:"task_id,omitempty"`

	// Error is the expected ledger error code, e.g. "QUORUM_NOT_MET".
	Error string `yaml:"error,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "status": task lifecycle state equals Status
	// - "result": committed result has OutputHash (and Signers, if given)
	// - "event_count": the log holds Count events of Kind (all kinds if empty)
	Type string `yaml:"type"`

	TaskID     uint64   `yaml:"task_id,omitempty"`
	Status     string   `yaml:"status,omitempty"`
	OutputHash string   `yaml:"output_hash,omitempty"`
	Signers    []string `yaml:"signers,omitempty"`
	Kind       string   `yaml:"kind,omitempty"`
	Count      int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStatus     = "status"
	AssertResult     = "result"
	AssertEventCount = "event_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Committee) > ir.MaxCommittee {
		return fmt.Errorf("committee has %d members, max %d", len(s.Committee), ir.MaxCommittee)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if (step.Submit == nil) == (step.Attest == nil) {
			return fmt.Errorf("step %d: exactly one of submit or attest is required", i)
		}
		if step.Expect != nil && step.Expect.TaskID != nil && step.Submit == nil {
			return fmt.Errorf("step %d: expect.task_id only applies to submit", i)
		}
		if step.Attest != nil {
			for _, f := range step.Attest.Forge {
				if !contains(step.Attest.Signers, f) {
					return fmt.Errorf("step %d: forged signer %q is not in signers", i, f)
				}
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}

	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertStatus:
		switch ir.TaskStatus(a.Status) {
		case ir.StatusUnknown, ir.StatusSubmitted, ir.StatusVerified:
			return nil
		}
		return fmt.Errorf("status must be one of unknown, submitted, verified; got %q", a.Status)
	case AssertResult:
		if a.OutputHash == "" {
			return fmt.Errorf("result assertion requires output_hash")
		}
		return nil
	case AssertEventCount:
		switch ir.EventKind(a.Kind) {
		case "", ir.EventTaskSubmitted, ir.EventResultVerified:
			return nil
		}
		return fmt.Errorf("unknown event kind %q", a.Kind)
	default:
		return fmt.Errorf("unknown assertion type %q (valid: %s)", a.Type,
			strings.Join([]string{AssertStatus, AssertResult, AssertEventCount}, ", "))
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
