package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/taskledger/internal/ir"
	"github.com/roach88/taskledger/internal/ledger"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, actual %s", e.Type, e.Expected, e.Actual)
}

// evaluate checks one assertion against the ledger and its event log.
func (h *Harness) evaluate(ctx context.Context, a Assertion, events []ir.Event) error {
	switch a.Type {
	case AssertStatus:
		return h.assertStatus(ctx, a)
	case AssertResult:
		return h.assertResult(ctx, a)
	case AssertEventCount:
		return assertEventCount(events, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func (h *Harness) assertStatus(ctx context.Context, a Assertion) error {
	status, err := h.ledger.Status(ctx, a.TaskID)
	if err != nil {
		return err
	}
	if string(status) != a.Status {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("task %d %s", a.TaskID, a.Status),
			Actual:   string(status),
		}
	}
	return nil
}

func (h *Harness) assertResult(ctx context.Context, a Assertion) error {
	res, err := h.ledger.Result(ctx, a.TaskID)
	if ledger.IsResultNotFound(err) {
		return &AssertionError{
			Type:     AssertResult,
			Expected: fmt.Sprintf("task %d committed with %s", a.TaskID, a.OutputHash),
			Actual:   "no result",
		}
	}
	if err != nil {
		return err
	}

	if res.OutputHash != a.OutputHash {
		return &AssertionError{
			Type:     AssertResult,
			Expected: "output_hash " + a.OutputHash,
			Actual:   "output_hash " + res.OutputHash,
		}
	}

	if len(a.Signers) > 0 {
		want := make([]ir.Identity, len(a.Signers))
		for i, name := range a.Signers {
			want[i] = h.signer(name).Identity()
		}
		if !slices.Equal(want, res.SignerSet) {
			return &AssertionError{
				Type:     AssertResult,
				Expected: "signers " + strings.Join(a.Signers, ","),
				Actual:   fmt.Sprintf("%d other signers", len(res.SignerSet)),
			}
		}
	}
	return nil
}

func assertEventCount(events []ir.Event, a Assertion) error {
	count := 0
	for _, e := range events {
		if a.Kind == "" || string(e.Kind) == a.Kind {
			count++
		}
	}
	if count != a.Count {
		kind := a.Kind
		if kind == "" {
			kind = "events"
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s", a.Count, kind),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}
