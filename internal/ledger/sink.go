package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/taskledger/internal/ir"
)

// Sink receives ledger events for observers (the NotificationSink).
//
// The store's event log is the durable record; a Sink is a one-way
// notification after the fact. Emit is called after the state change is
// committed, so an error from Emit never rolls anything back.
type Sink interface {
	Emit(ctx context.Context, e ir.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e ir.Event) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, e ir.Event) error {
	return f(ctx, e)
}

// DiscardSink drops every event.
type DiscardSink struct{}

// Emit implements Sink.
func (DiscardSink) Emit(context.Context, ir.Event) error { return nil }

// MultiSink fans an event out to every sink, in order.
// All sinks are called even if one fails; errors are joined.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, e ir.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SlogSink logs each event at Info level.
type SlogSink struct {
	Logger *slog.Logger
}

// Emit implements Sink.
func (s SlogSink) Emit(ctx context.Context, e ir.Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"seq", e.Seq, "task_id", e.TaskID()}
	switch {
	case e.Submitted != nil:
		attrs = append(attrs,
			"requester", e.Submitted.Requester,
			"model_id", e.Submitted.ModelID,
			"input_preview", e.Submitted.InputPreview,
		)
	case e.Verified != nil:
		attrs = append(attrs, "output_hash", e.Verified.OutputHash)
	}
	logger.InfoContext(ctx, string(e.Kind), attrs...)
	return nil
}

// Recorder keeps every emitted event in memory.
//
// Thread-safety: Recorder is safe for concurrent use via internal mutex.
type Recorder struct {
	mu     sync.Mutex
	events []ir.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Sink.
func (r *Recorder) Emit(_ context.Context, e ir.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
