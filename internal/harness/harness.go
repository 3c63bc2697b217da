package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/ir"
	"github.com/roach88/taskledger/internal/ledger"
	"github.com/roach88/taskledger/internal/testutil"
)

// forgedHash is the output hash forged signatures are made over.
const forgedHash = "00"

// Harness executes one scenario against one ledger.
type Harness struct {
	ledger  *ledger.Ledger
	signers map[string]*committee.Signer
}

// Run executes a scenario against a fresh in-memory ledger.
func Run(scenario *Scenario) (*Result, error) {
	return RunOn(context.Background(), scenario, ledger.NewMemoryStore())
}

// RunOn executes a scenario against st, which should be empty.
//
// Execution is deterministic: timestamps come from testutil's clock, request
// ids are fixed, and member keys derive from member names.
func RunOn(ctx context.Context, scenario *Scenario, st ledger.Store) (*Result, error) {
	members := make([]committee.Member, len(scenario.Committee))
	for i, name := range scenario.Committee {
		members[i] = committee.DeterministicSigner(name).Member()
	}
	c, err := committee.New(members...)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: committee: %w", scenario.Name, err)
	}

	h := &Harness{
		ledger: ledger.New(st, committee.NewStatic(c),
			ledger.WithClock(testutil.NewDeterministicClock()),
			ledger.WithRequestIDs(ledger.NewFixedGenerator("scenario-"+scenario.Name)),
			ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
		signers: make(map[string]*committee.Signer),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		outcome, err := h.runStep(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: step %d: %w", scenario.Name, i, err)
		}
		result.Steps = append(result.Steps, outcome)
		checkExpect(result, outcome, step.Expect)
	}

	events, err := h.ledger.Events(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	result.Events = events

	for i, a := range scenario.Assertions {
		if err := h.evaluate(ctx, a, events); err != nil {
			result.AddError(fmt.Sprintf("assertion %d: %v", i, err))
		}
	}

	return result, nil
}

// runStep executes one step. Ledger rejections are recorded in the outcome;
// only infrastructure failures are returned as errors.
func (h *Harness) runStep(ctx context.Context, index int, step Step) (StepOutcome, error) {
	if step.Submit != nil {
		s := step.Submit
		modelID, input := s.ModelID, s.Input
		if s.ModelIDLen > 0 {
			modelID = strings.Repeat("m", s.ModelIDLen)
		}
		if s.InputLen > 0 {
			input = strings.Repeat("i", s.InputLen)
		}

		outcome := StepOutcome{Index: index, Op: "submit"}
		id, err := h.ledger.Submit(ctx, ir.Identity(s.Requester), modelID, input)
		if code := ledger.CodeOf(err); code != "" {
			outcome.Error = string(code)
			return outcome, nil
		} else if err != nil {
			return StepOutcome{}, err
		}
		outcome.TaskID, outcome.HasID = id, true
		return outcome, nil
	}

	a := step.Attest
	outcome := StepOutcome{Index: index, Op: "attest", TaskID: a.TaskID, HasID: true}
	_, err := h.ledger.SubmitAttestation(ctx, h.attestation(a))
	if code := ledger.CodeOf(err); code != "" {
		outcome.Error = string(code)
		return outcome, nil
	} else if err != nil {
		return StepOutcome{}, err
	}
	return outcome, nil
}

// attestation builds the signed attestation for a step.
func (h *Harness) attestation(a *AttestStep) ir.Attestation {
	att := ir.Attestation{
		TaskID:     a.TaskID,
		OutputHash: a.OutputHash,
		Signatures: make([]ir.Signature, len(a.Signers)),
		Signers:    make([]ir.Identity, len(a.Signers)),
	}
	for i, name := range a.Signers {
		s := h.signer(name)
		hash := a.OutputHash
		if contains(a.Forge, name) {
			hash = forgedHash
		}
		att.Signatures[i] = s.Sign(a.TaskID, hash)
		att.Signers[i] = s.Identity()
	}
	return att
}

func (h *Harness) signer(name string) *committee.Signer {
	s, ok := h.signers[name]
	if !ok {
		s = committee.DeterministicSigner(name)
		h.signers[name] = s
	}
	return s
}

// checkExpect compares a step outcome with its expectation.
// A step without expect must succeed.
func checkExpect(result *Result, outcome StepOutcome, expect *Expect) {
	want := ""
	if expect != nil {
		want = expect.Error
	}
	if outcome.Error != want {
		result.AddError(fmt.Sprintf("step %d (%s): expected error %q, got %q",
			outcome.Index, outcome.Op, want, outcome.Error))
		return
	}
	if expect != nil && expect.TaskID != nil && outcome.TaskID != *expect.TaskID {
		result.AddError(fmt.Sprintf("step %d (%s): expected task_id %d, got %d",
			outcome.Index, outcome.Op, *expect.TaskID, outcome.TaskID))
	}
}
