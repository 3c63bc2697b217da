package ledger

import (
	"context"

	"github.com/roach88/taskledger/internal/ir"
)

// Store is the persistence port of the ledger.
// Implemented by MemoryStore (in-process) and store.Store (SQLite).
//
// Implementations provide the two atomic primitives the protocol needs and
// nothing more. The ledger does no locking of its own.
type Store interface {
	// AppendTask allocates the next task id from the store's sequence,
	// persists draft under it and appends its TaskSubmitted event, all
	// atomically. draft.TaskID is ignored.
	AppendTask(ctx context.Context, draft ir.TaskRecord) (ir.TaskRecord, ir.Event, error)

	// Task returns the record for taskID; found is false if none exists.
	Task(ctx context.Context, taskID uint64) (rec ir.TaskRecord, found bool, err error)

	// CreateResult stores res only if no result exists for res.TaskID and
	// appends its ResultVerified event in the same step (compare-and-create).
	// When a result already exists it is returned unchanged with
	// created=false and no event.
	CreateResult(ctx context.Context, res ir.VerifiedResult) (stored ir.VerifiedResult, ev ir.Event, created bool, err error)

	// Result returns the committed result for taskID; found is false if none exists.
	Result(ctx context.Context, taskID uint64) (res ir.VerifiedResult, found bool, err error)

	// Events returns up to limit events with Seq > afterSeq in log order.
	// limit <= 0 means no limit.
	Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error)
}
