package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/taskledger/internal/ir"
)

// TaskSequence is the sequence that issues task ids.
const TaskSequence = "task"

// NextSequence returns the next value of the named sequence, starting at 0.
// The first call for a name lazily creates it.
func (s *Store) NextSequence(ctx context.Context, name string) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("next sequence: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	next, err := nextSequence(ctx, tx, name)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("next sequence: commit: %w", err)
	}
	return next, nil
}

// nextSequence increments name inside tx and returns the pre-increment value.
func nextSequence(ctx context.Context, tx *sql.Tx, name string) (uint64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sequences (name, next) VALUES (?, 0)
		ON CONFLICT(name) DO NOTHING
	`, name)
	if err != nil {
		return 0, fmt.Errorf("next sequence %q: init: %w", name, err)
	}

	var value int64
	if err := tx.QueryRowContext(ctx, `SELECT next FROM sequences WHERE name = ?`, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("next sequence %q: read: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sequences SET next = next + 1 WHERE name = ?`, name); err != nil {
		return 0, fmt.Errorf("next sequence %q: increment: %w", name, err)
	}
	return uint64(value), nil
}

// AppendTask allocates the next task id and records the task and its
// TaskSubmitted event in one transaction.
func (s *Store) AppendTask(ctx context.Context, draft ir.TaskRecord) (ir.TaskRecord, ir.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.TaskRecord{}, ir.Event{}, fmt.Errorf("append task: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	id, err := nextSequence(ctx, tx, TaskSequence)
	if err != nil {
		return ir.TaskRecord{}, ir.Event{}, fmt.Errorf("append task: %w", err)
	}

	rec := draft
	rec.TaskID = id
	rec.CreatedAt = fromNanos(toNanos(draft.CreatedAt))

	digest, err := ir.TaskDigest(rec)
	if err != nil {
		return ir.TaskRecord{}, ir.Event{}, fmt.Errorf("append task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks
		(task_id, requester, model_id, input_data, created_at, digest)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		int64(rec.TaskID),
		string(rec.Requester),
		rec.ModelID,
		rec.InputData,
		toNanos(rec.CreatedAt),
		digest,
	)
	if err != nil {
		return ir.TaskRecord{}, ir.Event{}, fmt.Errorf("append task: insert: %w", err)
	}

	ev, err := insertEvent(ctx, tx, ir.NewTaskSubmitted(rec))
	if err != nil {
		return ir.TaskRecord{}, ir.Event{}, fmt.Errorf("append task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ir.TaskRecord{}, ir.Event{}, fmt.Errorf("append task: commit: %w", err)
	}
	return rec, ev, nil
}

// CreateResult inserts res unless the task already has a result.
//
// Uses ON CONFLICT(task_id) DO NOTHING. If a row already exists the
// existing result is returned with created=false and no event is written.
//
// Note: The task referenced by res.TaskID must exist (foreign key constraint).
func (s *Store) CreateResult(ctx context.Context, res ir.VerifiedResult) (ir.VerifiedResult, ir.Event, bool, error) {
	id, err := rowID(res.TaskID)
	if err != nil {
		return ir.VerifiedResult{}, ir.Event{}, false, fmt.Errorf("create result: %w", err)
	}
	res.Timestamp = fromNanos(toNanos(res.Timestamp))

	signers, err := marshalSignerSet(res.SignerSet)
	if err != nil {
		return ir.VerifiedResult{}, ir.Event{}, false, fmt.Errorf("create result: %w", err)
	}
	digest, err := ir.ResultDigest(res)
	if err != nil {
		return ir.VerifiedResult{}, ir.Event{}, false, fmt.Errorf("create result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.VerifiedResult{}, ir.Event{}, false, fmt.Errorf("create result: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO verified_results
		(task_id, output_hash, timestamp, signer_set, digest)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO NOTHING
	`,
		id,
		res.OutputHash,
		toNanos(res.Timestamp),
		signers,
		digest,
	)
	if err != nil {
		return ir.VerifiedResult{}, ir.Event{}, false, fmt.Errorf("create result: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return ir.VerifiedResult{}, ir.Event{}, false, fmt.Errorf("create result: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Conflict - the task already has a result; return it unchanged.
		existing, err := scanResult(tx.QueryRowContext(ctx, selectResult, id))
		if err != nil {
			return ir.VerifiedResult{}, ir.Event{}, false, fmt.Errorf("create result: select existing: %w", err)
		}
		return existing, ir.Event{}, false, nil
	}

	ev, err := insertEvent(ctx, tx, ir.NewResultVerified(res))
	if err != nil {
		return ir.VerifiedResult{}, ir.Event{}, false, fmt.Errorf("create result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ir.VerifiedResult{}, ir.Event{}, false, fmt.Errorf("create result: commit: %w", err)
	}
	return res, ev, true, nil
}

// insertEvent appends e to the event log inside tx and returns it with Seq set.
func insertEvent(ctx context.Context, tx *sql.Tx, e ir.Event) (ir.Event, error) {
	payload, err := marshalEvent(e)
	if err != nil {
		return ir.Event{}, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO events (kind, task_id, payload)
		VALUES (?, ?, ?)
	`, string(e.Kind), int64(e.TaskID()), payload)
	if err != nil {
		return ir.Event{}, fmt.Errorf("insert event: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return ir.Event{}, fmt.Errorf("insert event: last insert id: %w", err)
	}
	e.Seq = seq
	return e, nil
}
