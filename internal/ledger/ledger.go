package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/ir"
)

// Ledger is the TaskLedger: it accepts tasks and commits attested results.
//
// Thread-safety: all methods are safe for concurrent use. The ledger holds
// no mutable state of its own; coordination is delegated to the Store's
// atomic sequence and compare-and-create primitives.
type Ledger struct {
	store     Store
	committee committee.Source
	verifier  *Verifier
	results   *Results
	sink      Sink
	clock     Clock
	ids       RequestIDGenerator
	logger    *slog.Logger
}

// Option allows configuration of ledger collaborators.
type Option func(*Ledger)

// WithSink sets the NotificationSink for TaskSubmitted and ResultVerified.
// Default: DiscardSink (events are still in the store's log).
func WithSink(s Sink) Option {
	return func(l *Ledger) {
		l.sink = s
	}
}

// WithClock sets the timestamp source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithRequestIDs sets the request id generator. Default: UUIDv7Generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(l *Ledger) {
		l.ids = g
	}
}

// New creates a Ledger over store, verifying attestations against the
// committee supplied by source.
func New(store Store, source committee.Source, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		committee: source,
		verifier:  NewVerifier(),
		sink:      DiscardSink{},
		clock:     SystemClock{},
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.results = NewResults(store, l.sink, l.logger)
	return l
}

// Verifier returns the ledger's quorum verifier.
func (l *Ledger) Verifier() *Verifier {
	return l.verifier
}

// Results returns the ledger's result store.
func (l *Ledger) Results() *Results {
	return l.results
}

// Submit validates and records a new inference task and returns its id.
//
// Validation happens before the sequence is consulted, so a rejected
// submission never consumes an id. Text fields must be valid UTF-8 and are
// stored in NFC; length bounds apply to the NFC form. The TaskSubmitted
// event carries the first ir.PreviewLen bytes of the input.
func (l *Ledger) Submit(ctx context.Context, requester ir.Identity, modelID, inputData string) (uint64, error) {
	requester, modelID, inputData, err := normalizeTask(requester, modelID, inputData)
	if err != nil {
		return 0, err
	}
	if err := validateTask(requester, modelID, inputData); err != nil {
		return 0, err
	}

	reqID := l.ids.Generate()
	rec, ev, err := l.store.AppendTask(ctx, ir.TaskRecord{
		Requester: requester,
		ModelID:   modelID,
		InputData: inputData,
		CreatedAt: l.clock.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("submit task: %w", err)
	}

	l.logger.Info("task submitted",
		"request_id", reqID,
		"task_id", rec.TaskID,
		"requester", rec.Requester,
		"model_id", rec.ModelID,
	)
	l.notify(ctx, reqID, ev)

	return rec.TaskID, nil
}

// SubmitAttestation verifies an attestation and, if it forms a quorum
// certificate, commits the result.
//
// Failures: VALIDATION_ERROR (malformed output hash), TASK_NOT_FOUND,
// ALREADY_COMMITTED, QUORUM_NOT_MET, UNKNOWN_SIGNER, INVALID_SIGNATURE.
// Any failure other than ALREADY_COMMITTED leaves the task in Submitted,
// retryable with a new signature set.
func (l *Ledger) SubmitAttestation(ctx context.Context, att ir.Attestation) (ir.VerifiedResult, error) {
	reqID := l.ids.Generate()

	res, err := l.submitAttestation(ctx, att)
	if err != nil {
		if code := CodeOf(err); code != "" {
			l.logger.Warn("attestation rejected",
				"request_id", reqID,
				"task_id", att.TaskID,
				"code", code,
				"error", err,
			)
		}
		return ir.VerifiedResult{}, err
	}

	l.logger.Info("result committed",
		"request_id", reqID,
		"task_id", res.TaskID,
		"output_hash", res.OutputHash,
		"signers", len(res.SignerSet),
	)
	return res, nil
}

func (l *Ledger) submitAttestation(ctx context.Context, att ir.Attestation) (ir.VerifiedResult, error) {
	if err := validateOutputHash(att.OutputHash); err != nil {
		return ir.VerifiedResult{}, err
	}

	if _, found, err := l.store.Task(ctx, att.TaskID); err != nil {
		return ir.VerifiedResult{}, fmt.Errorf("submit attestation: %w", err)
	} else if !found {
		return ir.VerifiedResult{}, NewTaskNotFoundError(att.TaskID)
	}

	// Verified is terminal; skip the cryptography for a settled task.
	if _, found, err := l.store.Result(ctx, att.TaskID); err != nil {
		return ir.VerifiedResult{}, fmt.Errorf("submit attestation: %w", err)
	} else if found {
		return ir.VerifiedResult{}, NewAlreadyCommittedError(att.TaskID)
	}

	c, err := l.committee.Committee(ctx)
	if err != nil {
		return ir.VerifiedResult{}, fmt.Errorf("submit attestation: load committee: %w", err)
	}
	if err := l.verifier.Check(att, c); err != nil {
		return ir.VerifiedResult{}, err
	}

	// A concurrent commit can still win between the check above and here;
	// Commit's compare-and-create reports it as ALREADY_COMMITTED.
	return l.results.Commit(ctx, att.TaskID, att.OutputHash, att.Signers, l.clock.Now())
}

// Task returns the task record for taskID.
func (l *Ledger) Task(ctx context.Context, taskID uint64) (ir.TaskRecord, error) {
	rec, found, err := l.store.Task(ctx, taskID)
	if err != nil {
		return ir.TaskRecord{}, fmt.Errorf("read task: %w", err)
	}
	if !found {
		return ir.TaskRecord{}, NewTaskNotFoundError(taskID)
	}
	return rec, nil
}

// Result returns the committed result for taskID.
func (l *Ledger) Result(ctx context.Context, taskID uint64) (ir.VerifiedResult, error) {
	res, found, err := l.store.Result(ctx, taskID)
	if err != nil {
		return ir.VerifiedResult{}, fmt.Errorf("read result: %w", err)
	}
	if !found {
		return ir.VerifiedResult{}, NewResultNotFoundError(taskID)
	}
	return res, nil
}

// Status returns the lifecycle state of taskID.
func (l *Ledger) Status(ctx context.Context, taskID uint64) (ir.TaskStatus, error) {
	if _, found, err := l.store.Result(ctx, taskID); err != nil {
		return "", fmt.Errorf("read status: %w", err)
	} else if found {
		return ir.StatusVerified, nil
	}
	if _, found, err := l.store.Task(ctx, taskID); err != nil {
		return "", fmt.Errorf("read status: %w", err)
	} else if found {
		return ir.StatusSubmitted, nil
	}
	return ir.StatusUnknown, nil
}

// Events returns the ledger's event log after afterSeq.
func (l *Ledger) Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error) {
	events, err := l.store.Events(ctx, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

// notify forwards a committed event to the sink. The state change already
// happened; failures are logged only.
func (l *Ledger) notify(ctx context.Context, reqID string, ev ir.Event) {
	if err := l.sink.Emit(ctx, ev); err != nil {
		l.logger.Error("event sink failed",
			"request_id", reqID,
			"kind", ev.Kind,
			"task_id", ev.TaskID(),
			"error", err,
		)
	}
}

// normalizeTask rejects fields that are not valid UTF-8 and returns the
// rest in NFC, the form the record, its events and its digest all share.
func normalizeTask(requester ir.Identity, modelID, inputData string) (ir.Identity, string, string, error) {
	fields := []struct{ name, value string }{
		{"requester", string(requester)},
		{"model_id", modelID},
		{"input_data", inputData},
	}
	for _, f := range fields {
		if !utf8.ValidString(f.value) {
			return "", "", "", NewValidationError(f.name, f.name+" is not valid UTF-8")
		}
	}
	return ir.Identity(norm.NFC.String(string(requester))), norm.NFC.String(modelID), norm.NFC.String(inputData), nil
}

// validateTask enforces submit preconditions. Lengths are in bytes.
func validateTask(requester ir.Identity, modelID, inputData string) error {
	if requester == "" {
		return NewValidationError("requester", "requester is required")
	}
	if len(modelID) >= ir.MaxModelIDLen {
		return NewValidationError("model_id", fmt.Sprintf(
			"model_id is %d bytes, must be under %d", len(modelID), ir.MaxModelIDLen))
	}
	if len(inputData) >= ir.MaxInputLen {
		return NewValidationError("input_data", fmt.Sprintf(
			"input_data is %d bytes, must be under %d", len(inputData), ir.MaxInputLen))
	}
	return nil
}

// validateOutputHash requires 1..ir.MaxOutputHashLen hex characters.
func validateOutputHash(outputHash string) error {
	if outputHash == "" {
		return NewValidationError("output_hash", "output_hash is required")
	}
	if len(outputHash) > ir.MaxOutputHashLen {
		return NewValidationError("output_hash", fmt.Sprintf(
			"output_hash is %d characters, max %d", len(outputHash), ir.MaxOutputHashLen))
	}
	if _, err := hex.DecodeString(outputHash); err != nil {
		return NewValidationError("output_hash", "output_hash must be hex")
	}
	return nil
}
