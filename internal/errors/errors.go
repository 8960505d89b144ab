package errors

import "fmt"

// ErrorCode represents a watchpot error code.
type ErrorCode string

const (
	ErrInvalidConfig      ErrorCode = "INVALID_CONFIG"      // fatal, never retried
	ErrCaptureFailed      ErrorCode = "CAPTURE_FAILED"      // retry budget exhausted
	ErrDispatchFailed     ErrorCode = "DISPATCH_FAILED"     // retry budget exhausted
	ErrCombineUnavailable ErrorCode = "COMBINE_UNAVAILABLE" // artifact could not be built
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrInternal           ErrorCode = "INTERNAL"
)

// AgentError represents a structured error with code and details.
type AgentError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidConfig creates a fatal configuration error.
func NewInvalidConfig(msg string) *AgentError {
	return &AgentError{
		Code:    ErrInvalidConfig,
		Message: msg,
	}
}

// NewCaptureFailed creates an error for a capture whose retry budget is exhausted.
func NewCaptureFailed(slot string, attempts int, last error) *AgentError {
	msg := fmt.Sprintf("capture for slot %s failed after %d attempts", slot, attempts)
	if last != nil {
		msg += ": " + last.Error()
	}
	return &AgentError{
		Code:    ErrCaptureFailed,
		Message: msg,
		Details: map[string]any{"slot": slot, "attempts": attempts},
	}
}

// NewDispatchFailed creates an error for a dispatch whose retry budget is exhausted.
func NewDispatchFailed(attempts int, last error) *AgentError {
	msg := fmt.Sprintf("dispatch failed after %d attempts", attempts)
	if last != nil {
		msg += ": " + last.Error()
	}
	return &AgentError{
		Code:    ErrDispatchFailed,
		Message: msg,
		Details: map[string]any{"attempts": attempts},
	}
}

// NewCombineUnavailable creates an error for a failed consolidated artifact build.
func NewCombineUnavailable(err error) *AgentError {
	msg := "consolidated artifact unavailable"
	if err != nil {
		msg += ": " + err.Error()
	}
	return &AgentError{
		Code:    ErrCombineUnavailable,
		Message: msg,
	}
}

// NewNotFound creates an error for a missing bucket or record.
func NewNotFound(identifier string) *AgentError {
	return &AgentError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *AgentError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AgentError{
		Code:    ErrInternal,
		Message: msg,
	}
}

// Is checks if an error is an AgentError with the given code.
func Is(err error, code ErrorCode) bool {
	if aErr, ok := err.(*AgentError); ok {
		return aErr.Code == code
	}
	return false
}
