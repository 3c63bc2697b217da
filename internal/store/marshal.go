package store

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/roach88/taskledger/internal/ir"
)

// marshalSignerSet converts a signer set to canonical JSON TEXT for storage.
// Order is preserved.
func marshalSignerSet(signers []ir.Identity) (string, error) {
	arr := make([]any, len(signers))
	for i, s := range signers {
		arr[i] = s
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal signer set: %w", err)
	}
	return string(data), nil
}

// unmarshalSignerSet parses a stored signer set.
func unmarshalSignerSet(data string) ([]ir.Identity, error) {
	var signers []ir.Identity
	if err := json.Unmarshal([]byte(data), &signers); err != nil {
		return nil, fmt.Errorf("unmarshal signer set: %w", err)
	}
	if signers == nil {
		signers = []ir.Identity{}
	}
	return signers, nil
}

// marshalEvent converts an event body to canonical JSON TEXT for storage.
func marshalEvent(e ir.Event) (string, error) {
	data, err := e.MarshalPayload()
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

// rowID converts a task id to SQLite's signed INTEGER.
func rowID(taskID uint64) (int64, error) {
	if taskID > math.MaxInt64 {
		return 0, fmt.Errorf("task id %d exceeds storage range", taskID)
	}
	return int64(taskID), nil
}

// toNanos and fromNanos store timestamps as UTC Unix nanoseconds.
func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
