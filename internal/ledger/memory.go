package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/taskledger/internal/ir"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store.
//
// Task ids come from a Counter; tasks and results live in sync.Maps so that
// LoadOrStore provides compare-and-create. The event log sits behind mu,
// since its append order defines Seq. A task's id and its event Seq are
// assigned under the same lock, so TaskSubmitted events appear in task id
// order, as in the SQLite store.
type MemoryStore struct {
	seq     *Counter
	tasks   sync.Map // uint64 -> ir.TaskRecord
	results sync.Map // uint64 -> ir.VerifiedResult

	mu     sync.Mutex
	events []ir.Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seq: NewCounter()}
}

// Sequence exposes the store's task id allocator.
func (m *MemoryStore) Sequence() *Counter {
	return m.seq
}

// AppendTask implements Store.
func (m *MemoryStore) AppendTask(ctx context.Context, draft ir.TaskRecord) (ir.TaskRecord, ir.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := draft
	rec.TaskID = m.seq.Next()
	if _, loaded := m.tasks.LoadOrStore(rec.TaskID, rec); loaded {
		// Unreachable unless the counter wrapped.
		return ir.TaskRecord{}, ir.Event{}, fmt.Errorf("append task: id %d already allocated", rec.TaskID)
	}
	return rec, m.appendEventLocked(ir.NewTaskSubmitted(rec)), nil
}

// Task implements Store.
func (m *MemoryStore) Task(ctx context.Context, taskID uint64) (ir.TaskRecord, bool, error) {
	v, ok := m.tasks.Load(taskID)
	if !ok {
		return ir.TaskRecord{}, false, nil
	}
	return v.(ir.TaskRecord), true, nil
}

// CreateResult implements Store.
func (m *MemoryStore) CreateResult(ctx context.Context, res ir.VerifiedResult) (ir.VerifiedResult, ir.Event, bool, error) {
	res.SignerSet = slices.Clone(res.SignerSet)
	existing, loaded := m.results.LoadOrStore(res.TaskID, res)
	if loaded {
		return cloneResult(existing.(ir.VerifiedResult)), ir.Event{}, false, nil
	}
	return cloneResult(res), m.appendEvent(ir.NewResultVerified(res)), true, nil
}

// Result implements Store.
func (m *MemoryStore) Result(ctx context.Context, taskID uint64) (ir.VerifiedResult, bool, error) {
	v, ok := m.results.Load(taskID)
	if !ok {
		return ir.VerifiedResult{}, false, nil
	}
	return cloneResult(v.(ir.VerifiedResult)), true, nil
}

// Events implements Store.
func (m *MemoryStore) Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []ir.Event{}
	for _, e := range m.events {
		if e.Seq <= afterSeq {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// appendEvent stamps e with the next log position and appends it.
func (m *MemoryStore) appendEvent(e ir.Event) ir.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEventLocked(e)
}

// appendEventLocked is appendEvent with mu already held.
func (m *MemoryStore) appendEventLocked(e ir.Event) ir.Event {
	e.Seq = int64(len(m.events)) + 1
	m.events = append(m.events, e)
	return e
}

func cloneResult(res ir.VerifiedResult) ir.VerifiedResult {
	res.SignerSet = slices.Clone(res.SignerSet)
	return res
}
