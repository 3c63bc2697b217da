package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/taskledger/internal/ir"
)

// Error is a protocol-level rejection returned by the ledger.
//
// Errors are returned synchronously and never retried internally.
// VALIDATION_ERROR and the quorum family are recoverable by the caller;
// ALREADY_COMMITTED is terminal for the task.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// TaskID identifies the affected task, when there is one.
	TaskID uint64

	// Signer identifies the offending committee identity (signer errors).
	Signer ir.Identity

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates input out of bounds; no state was touched.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeAlreadyCommitted indicates the task already has a result.
	ErrCodeAlreadyCommitted ErrorCode = "ALREADY_COMMITTED"

	// ErrCodeQuorumNotMet indicates too few distinct signatures.
	ErrCodeQuorumNotMet ErrorCode = "QUORUM_NOT_MET"

	// ErrCodeInvalidSignature indicates a signature failed verification.
	ErrCodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	// ErrCodeUnknownSigner indicates a signer outside the committee.
	ErrCodeUnknownSigner ErrorCode = "UNKNOWN_SIGNER"

	// ErrCodeTaskNotFound indicates no task exists with the id.
	ErrCodeTaskNotFound ErrorCode = "TASK_NOT_FOUND"

	// ErrCodeResultNotFound indicates the task has no committed result.
	ErrCodeResultNotFound ErrorCode = "RESULT_NOT_FOUND"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Signer != "" {
		return fmt.Sprintf("%s: %s (task=%d, signer=%s)", e.Code, e.Message, e.TaskID, e.Signer)
	}
	if e.Code == ErrCodeValidation {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (task=%d)", e.Code, e.Message, e.TaskID)
}

// Retryable reports whether the caller can meaningfully retry with
// corrected input or a re-collected signature set.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeValidation, ErrCodeQuorumNotMet, ErrCodeInvalidSignature, ErrCodeUnknownSigner:
		return true
	}
	return false
}

// CodeOf returns the ErrorCode of err, or "" if err is not a ledger *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsValidationError returns true if err is a VALIDATION_ERROR.
func IsValidationError(err error) bool { return CodeOf(err) == ErrCodeValidation }

// IsAlreadyCommitted returns true if err is an ALREADY_COMMITTED error.
func IsAlreadyCommitted(err error) bool { return CodeOf(err) == ErrCodeAlreadyCommitted }

// IsQuorumNotMet returns true if err is a QUORUM_NOT_MET error.
func IsQuorumNotMet(err error) bool { return CodeOf(err) == ErrCodeQuorumNotMet }

// IsInvalidSignature returns true if err is an INVALID_SIGNATURE error.
func IsInvalidSignature(err error) bool { return CodeOf(err) == ErrCodeInvalidSignature }

// IsUnknownSigner returns true if err is an UNKNOWN_SIGNER error.
func IsUnknownSigner(err error) bool { return CodeOf(err) == ErrCodeUnknownSigner }

// IsTaskNotFound returns true if err is a TASK_NOT_FOUND error.
func IsTaskNotFound(err error) bool { return CodeOf(err) == ErrCodeTaskNotFound }

// IsResultNotFound returns true if err is a RESULT_NOT_FOUND error.
func IsResultNotFound(err error) bool { return CodeOf(err) == ErrCodeResultNotFound }

// NewValidationError creates an Error for out-of-bounds input.
func NewValidationError(field, message string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: message,
		Details: map[string]string{"field": field},
	}
}

// NewAlreadyCommittedError creates an Error for a second commit attempt.
func NewAlreadyCommittedError(taskID uint64) *Error {
	return &Error{
		Code:    ErrCodeAlreadyCommitted,
		Message: "result already committed for task",
		TaskID:  taskID,
	}
}

// NewQuorumError creates an Error for an attestation below quorum.
func NewQuorumError(taskID uint64, message string) *Error {
	return &Error{
		Code:    ErrCodeQuorumNotMet,
		Message: message,
		TaskID:  taskID,
		Details: map[string]string{"threshold": fmt.Sprintf("%d", ir.QuorumThreshold)},
	}
}

// NewInvalidSignatureError creates an Error for a signature that failed verification.
func NewInvalidSignatureError(taskID uint64, signer ir.Identity, index int) *Error {
	return &Error{
		Code:    ErrCodeInvalidSignature,
		Message: "signature does not verify over canonical message",
		TaskID:  taskID,
		Signer:  signer,
		Details: map[string]string{"index": fmt.Sprintf("%d", index)},
	}
}

// NewUnknownSignerError creates an Error for a signer outside the committee.
func NewUnknownSignerError(taskID uint64, signer ir.Identity) *Error {
	return &Error{
		Code:    ErrCodeUnknownSigner,
		Message: "signer is not a committee member",
		TaskID:  taskID,
		Signer:  signer,
	}
}

// NewTaskNotFoundError creates an Error for an unknown task id.
func NewTaskNotFoundError(taskID uint64) *Error {
	return &Error{
		Code:    ErrCodeTaskNotFound,
		Message: "no such task",
		TaskID:  taskID,
	}
}

// NewResultNotFoundError creates an Error for a task with no committed result.
func NewResultNotFoundError(taskID uint64) *Error {
	return &Error{
		Code:    ErrCodeResultNotFound,
		Message: "no committed result for task",
		TaskID:  taskID,
	}
}
