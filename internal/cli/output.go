package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Ledger rejection or failing scenarios
	ExitCommandError = 2 // Command error (invalid paths, database not found, etc.)
)

// ErrCodeInternal is the CLIError code for failures that are not ledger
// rejections.
const ErrCodeInternal = "INTERNAL_ERROR"

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or as a CLIResponse
// JSON document.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose diagnostics; falls back to Writer
	Verbose   bool
	TraceID   string // request id, echoed as trace_id
}

// CLIResponse is the JSON envelope every command writes with --format json.
type CLIResponse struct {
	Status  string    `json:"status"` // "ok" or "error"
	Data    any       `json:"data,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// CLIError carries a ledger error code such as "QUORUM_NOT_MET".
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data as JSON, or text otherwise.
func (f *OutputFormatter) Success(data any, text string) error {
	return f.write(CLIResponse{Status: "ok", Data: data}, text)
}

// Error writes a failure. Details only appear in text mode with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	text := fmt.Sprintf("Error [%s]: %s", code, message)
	if f.Verbose && details != nil {
		text += fmt.Sprintf("\nDetails: %v", details)
	}
	return f.write(CLIResponse{
		Status: "error",
		Error:  &CLIError{Code: code, Message: message, Details: details},
	}, text)
}

func (f *OutputFormatter) write(resp CLIResponse, text string) error {
	if f.Format != "json" {
		_, err := fmt.Fprintln(f.Writer, text)
		return err
	}
	resp.TraceID = f.TraceID
	return json.NewEncoder(f.Writer).Encode(resp)
}

// VerboseLog writes a diagnostic line when --verbose is set. It goes to
// ErrWriter so JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns ErrWriter, or Writer when none is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
