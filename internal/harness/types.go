package harness

import (
	"github.com/roach88/taskledger/internal/ir"
)

// StepOutcome records what one scenario step produced.
type StepOutcome struct {
	Index  int    `json:"index"`
	Op     string `json:"op"` // "submit" or "attest"
	TaskID uint64 `json:"task_id"`
	HasID  bool   `json:"-"` // false for a rejected submit
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Steps holds one outcome per scenario step, in order.
	Steps []StepOutcome `json:"steps"`

	// Events is the ledger's event log after the last step.
	Events []ir.Event `json:"events"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Events: []ir.Event{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
