package ir

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Protocol limits. These are fixed by the protocol, not configuration.
const (
	// QuorumThreshold is the minimum number of distinct, valid,
	// committee-authorized signatures an attestation needs.
	QuorumThreshold = 3

	// MaxCommittee is the largest committee the ledger accepts.
	MaxCommittee = 5

	// MaxModelIDLen is the exclusive upper bound on len(model_id) in bytes.
	MaxModelIDLen = 64

	// MaxInputLen is the exclusive upper bound on len(input_data) in bytes.
	MaxInputLen = 256

	// PreviewLen is the number of input bytes carried in TaskSubmitted.
	PreviewLen = 40

	// MaxOutputHashLen is the longest output hash (hex characters) accepted.
	MaxOutputHashLen = 64
)

// Identity names a requester or a committee member.
// Committee members are identified by their hex-encoded ed25519 public key.
type Identity string

// Signature is a raw ed25519 signature. It encodes as lowercase hex in JSON.
type Signature []byte

// ParseSignature decodes a hex-encoded signature.
func ParseSignature(s string) (Signature, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}
	return Signature(b), nil
}

// String returns the lowercase hex encoding.
func (s Signature) String() string {
	return hex.EncodeToString(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(s)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	*s = b
	return nil
}

// TaskRecord is an inference request accepted by the ledger.
// Once created it is never mutated.
type TaskRecord struct {
	TaskID    uint64    `json:"task_id"`
	Requester Identity  `json:"requester"`
	ModelID   string    `json:"model_id"`
	InputData string    `json:"input_data"`
	CreatedAt time.Time `json:"created_at"`
}

// Attestation is a committee's claim that a task produced OutputHash.
// It is transient: only the VerifiedResult derived from it is stored.
// Signatures[i] must be Signers[i]'s signature over CanonicalMessage.
type Attestation struct {
	TaskID     uint64      `json:"task_id"`
	OutputHash string      `json:"output_hash"`
	Signatures []Signature `json:"signatures"`
	Signers    []Identity  `json:"signers"`
}

// VerifiedResult is the committed outcome of a task.
// At most one exists per TaskID; it is immutable after creation.
type VerifiedResult struct {
	TaskID     uint64     `json:"task_id"` // References the originating TaskRecord
	OutputHash string     `json:"output_hash"`
	Timestamp  time.Time  `json:"timestamp"`
	SignerSet  []Identity `json:"signer_set"` // Attestation order, distinct
}

// TaskStatus is the lifecycle state of a task id.
type TaskStatus string

const (
	// StatusUnknown means no task has been issued with the id.
	StatusUnknown TaskStatus = "unknown"

	// StatusSubmitted means the task exists and has no committed result.
	StatusSubmitted TaskStatus = "submitted"

	// StatusVerified is terminal: a result has been committed.
	StatusVerified TaskStatus = "verified"
)
