package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/ir"
)

// Results commits verified results exactly once per task.
//
// Results trusts the caller to have obtained a positive Verifier decision
// for the same (task, output hash, signers); it never re-runs signature
// cryptography. It does enforce the structural invariants of a
// VerifiedResult: quorum-sized, distinct signer set no larger than the
// maximum committee.
type Results struct {
	store  Store
	sink   Sink
	logger *slog.Logger
}

// NewResults creates a result store over s, notifying sink on each commit.
// A nil sink discards notifications.
func NewResults(s Store, sink Sink, logger *slog.Logger) *Results {
	if sink == nil {
		sink = DiscardSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Results{store: s, sink: sink, logger: logger}
}

// Commit creates the VerifiedResult for taskID.
//
// Fails with ALREADY_COMMITTED if a result exists; the existing result is
// left untouched. That check comes before signer-set validation; the
// compare-and-create in the store still decides races, so concurrent
// commits for the same task produce exactly one success.
func (r *Results) Commit(
	ctx context.Context,
	taskID uint64,
	outputHash string,
	signers []ir.Identity,
	timestamp time.Time,
) (ir.VerifiedResult, error) {
	if _, found, err := r.store.Result(ctx, taskID); err != nil {
		return ir.VerifiedResult{}, fmt.Errorf("commit result: %w", err)
	} else if found {
		return ir.VerifiedResult{}, NewAlreadyCommittedError(taskID)
	}

	if err := checkSignerSet(signers); err != nil {
		return ir.VerifiedResult{}, err
	}

	signerSet := make([]ir.Identity, len(signers))
	for i, s := range signers {
		signerSet[i] = committee.Normalize(s)
	}

	stored, ev, created, err := r.store.CreateResult(ctx, ir.VerifiedResult{
		TaskID:     taskID,
		OutputHash: outputHash,
		Timestamp:  timestamp.UTC(),
		SignerSet:  signerSet,
	})
	if err != nil {
		return ir.VerifiedResult{}, fmt.Errorf("commit result: %w", err)
	}
	if !created {
		return ir.VerifiedResult{}, NewAlreadyCommittedError(taskID)
	}

	// The commit is irreversible; a sink failure is reported, not undone.
	if err := r.sink.Emit(ctx, ev); err != nil {
		r.logger.Error("event sink failed",
			"kind", ev.Kind,
			"task_id", taskID,
			"error", err,
		)
	}

	return stored, nil
}

// checkSignerSet enforces VerifiedResult's signer invariants.
func checkSignerSet(signers []ir.Identity) error {
	if len(signers) < ir.QuorumThreshold {
		return NewValidationError("signers", fmt.Sprintf(
			"signer set has %d members, need at least %d", len(signers), ir.QuorumThreshold))
	}
	if len(signers) > ir.MaxCommittee {
		return NewValidationError("signers", fmt.Sprintf(
			"signer set has %d members, max %d", len(signers), ir.MaxCommittee))
	}
	normalized := make([]ir.Identity, len(signers))
	for i, s := range signers {
		normalized[i] = committee.Normalize(s)
	}
	slices.Sort(normalized)
	if len(slices.Compact(normalized)) != len(signers) {
		return NewValidationError("signers", "signer set contains duplicates")
	}
	return nil
}
