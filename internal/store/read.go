package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/taskledger/internal/ir"
)

const selectTask = `
	SELECT task_id, requester, model_id, input_data, created_at, digest
	FROM tasks
	WHERE task_id = ?
`

const selectResult = `
	SELECT task_id, output_hash, timestamp, signer_set, digest
	FROM verified_results
	WHERE task_id = ?
`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Task returns the task record for taskID.
// Returns found=false if no such task exists.
func (s *Store) Task(ctx context.Context, taskID uint64) (ir.TaskRecord, bool, error) {
	id, err := rowID(taskID)
	if err != nil {
		return ir.TaskRecord{}, false, nil
	}

	rec, err := scanTask(s.db.QueryRowContext(ctx, selectTask, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ir.TaskRecord{}, false, nil
	}
	if err != nil {
		return ir.TaskRecord{}, false, fmt.Errorf("read task %d: %w", taskID, err)
	}
	return rec, true, nil
}

// Result returns the committed result for taskID.
// Returns found=false if the task has no result.
func (s *Store) Result(ctx context.Context, taskID uint64) (ir.VerifiedResult, bool, error) {
	id, err := rowID(taskID)
	if err != nil {
		return ir.VerifiedResult{}, false, nil
	}

	res, err := scanResult(s.db.QueryRowContext(ctx, selectResult, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ir.VerifiedResult{}, false, nil
	}
	if err != nil {
		return ir.VerifiedResult{}, false, fmt.Errorf("read result %d: %w", taskID, err)
	}
	return res, true, nil
}

// Events returns events with seq > afterSeq in log order.
// limit <= 0 returns all remaining events.
//
// Returns an empty slice (not nil) if there are no events.
func (s *Store) Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, payload
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			seq     int64
			kind    string
			payload string
		)
		if err := rows.Scan(&seq, &kind, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e, err := ir.DecodeEvent(seq, ir.EventKind(kind), []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", seq, err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// scanTask reads a task row and checks its digest.
func scanTask(row rowScanner) (ir.TaskRecord, error) {
	var (
		id        int64
		requester string
		createdAt int64
		digest    string
		rec       ir.TaskRecord
	)
	if err := row.Scan(&id, &requester, &rec.ModelID, &rec.InputData, &createdAt, &digest); err != nil {
		return ir.TaskRecord{}, err
	}
	rec.TaskID = uint64(id)
	rec.Requester = ir.Identity(requester)
	rec.CreatedAt = fromNanos(createdAt)

	if err := checkDigest(digest, func() (string, error) { return ir.TaskDigest(rec) }); err != nil {
		return ir.TaskRecord{}, fmt.Errorf("task %d: %w", id, err)
	}
	return rec, nil
}

// scanResult reads a verified result row and checks its digest.
func scanResult(row rowScanner) (ir.VerifiedResult, error) {
	var (
		id        int64
		timestamp int64
		signers   string
		digest    string
		res       ir.VerifiedResult
	)
	if err := row.Scan(&id, &res.OutputHash, &timestamp, &signers, &digest); err != nil {
		return ir.VerifiedResult{}, err
	}
	res.TaskID = uint64(id)
	res.Timestamp = fromNanos(timestamp)

	set, err := unmarshalSignerSet(signers)
	if err != nil {
		return ir.VerifiedResult{}, fmt.Errorf("result %d: %w", id, err)
	}
	res.SignerSet = set

	if err := checkDigest(digest, func() (string, error) { return ir.ResultDigest(res) }); err != nil {
		return ir.VerifiedResult{}, fmt.Errorf("result %d: %w", id, err)
	}
	return res, nil
}

// ErrIntegrity reports a stored row whose content no longer matches its digest.
var ErrIntegrity = errors.New("stored digest mismatch")

func checkDigest(stored string, compute func() (string, error)) error {
	got, err := compute()
	if err != nil {
		return err
	}
	if got != stored {
		return fmt.Errorf("%w: stored %s, computed %s", ErrIntegrity, stored, got)
	}
	return nil
}
