package ir

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// EventKind names an append-only ledger event.
type EventKind string

const (
	// EventTaskSubmitted is emitted once per accepted task.
	EventTaskSubmitted EventKind = "TaskSubmitted"

	// EventResultVerified is emitted once per committed result.
	EventResultVerified EventKind = "ResultVerified"
)

// TaskSubmitted announces a new task to off-chain workers.
type TaskSubmitted struct {
	Requester    Identity `json:"requester"`
	ModelID      string   `json:"model_id"`
	TaskID       uint64   `json:"task_id"`
	InputPreview string   `json:"input_preview"`
}

// ResultVerified announces a committed result.
type ResultVerified struct {
	TaskID     uint64 `json:"task_id"`
	OutputHash string `json:"output_hash"`
}

// Event is one entry of the ledger's event log.
// Exactly one of Submitted and Verified is set, matching Kind.
type Event struct {
	Seq       int64           `json:"seq"` // Position in the log, assigned by the store
	Kind      EventKind       `json:"kind"`
	Submitted *TaskSubmitted  `json:"task_submitted,omitempty"`
	Verified  *ResultVerified `json:"result_verified,omitempty"`
}

// NewTaskSubmitted builds the event for an accepted task.
func NewTaskSubmitted(rec TaskRecord) Event {
	return Event{
		Kind: EventTaskSubmitted,
		Submitted: &TaskSubmitted{
			Requester:    rec.Requester,
			ModelID:      rec.ModelID,
			TaskID:       rec.TaskID,
			InputPreview: Preview(rec.InputData),
		},
	}
}

// NewResultVerified builds the event for a committed result.
func NewResultVerified(res VerifiedResult) Event {
	return Event{
		Kind: EventResultVerified,
		Verified: &ResultVerified{
			TaskID:     res.TaskID,
			OutputHash: res.OutputHash,
		},
	}
}

// Preview returns the first PreviewLen bytes of input. A multi-byte rune
// straddling the cut is dropped so the preview stays valid UTF-8.
func Preview(input string) string {
	if len(input) <= PreviewLen {
		return input
	}
	cut := PreviewLen
	for cut > 0 && !utf8.RuneStart(input[cut]) {
		cut--
	}
	return input[:cut]
}

// TaskID returns the task the event refers to.
func (e Event) TaskID() uint64 {
	switch {
	case e.Submitted != nil:
		return e.Submitted.TaskID
	case e.Verified != nil:
		return e.Verified.TaskID
	}
	return 0
}

// Payload returns the event body as a canonical-JSON-ready map.
func (e Event) Payload() (map[string]any, error) {
	switch e.Kind {
	case EventTaskSubmitted:
		if e.Submitted == nil {
			return nil, fmt.Errorf("event %s: missing payload", e.Kind)
		}
		return map[string]any{
			"requester":     e.Submitted.Requester,
			"model_id":      e.Submitted.ModelID,
			"task_id":       e.Submitted.TaskID,
			"input_preview": e.Submitted.InputPreview,
		}, nil
	case EventResultVerified:
		if e.Verified == nil {
			return nil, fmt.Errorf("event %s: missing payload", e.Kind)
		}
		return map[string]any{
			"task_id":     e.Verified.TaskID,
			"output_hash": e.Verified.OutputHash,
		}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

// MarshalPayload returns the canonical JSON of the event body.
func (e Event) MarshalPayload() ([]byte, error) {
	payload, err := e.Payload()
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(payload)
}

// DecodeEvent rebuilds an event from its stored kind and payload.
func DecodeEvent(seq int64, kind EventKind, payload []byte) (Event, error) {
	e := Event{Seq: seq, Kind: kind}
	switch kind {
	case EventTaskSubmitted:
		e.Submitted = &TaskSubmitted{}
		if err := json.Unmarshal(payload, e.Submitted); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", kind, err)
		}
	case EventResultVerified:
		e.Verified = &ResultVerified{}
		if err := json.Unmarshal(payload, e.Verified); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", kind, err)
		}
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", kind)
	}
	return e, nil
}
