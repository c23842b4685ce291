package errors

import (
	"fmt"
)

// BridgeError is the structured error type for crawlbridge.
// It provides rich context for error handling, logging, and JSON envelopes.
type BridgeError struct {
	// Code is the unique error code (e.g., "ERR_301_BACKEND_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Validation, Backend, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *BridgeError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with BridgeError.
func (e *BridgeError) Is(target error) bool {
	if t, ok := target.(*BridgeError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *BridgeError) WithDetail(key, value string) *BridgeError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new BridgeError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *BridgeError {
	return &BridgeError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a BridgeError from an existing error.
// The error's message becomes the BridgeError message.
func Wrap(code string, err error) *BridgeError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Validation creates a validation error. Surfaced to the caller, never retried.
func Validation(message string) *BridgeError {
	return New(ErrCodeQueryEmpty, message, nil)
}

// ValidationCode creates a validation error with a specific code.
func ValidationCode(code, message string) *BridgeError {
	return New(code, message, nil)
}

// BackendTimeout creates a timeout error for a search backend.
// Degraded locally to an empty result set by the query facade.
func BackendTimeout(backend string, cause error) *BridgeError {
	return New(ErrCodeBackendTimeout, fmt.Sprintf("%s search exceeded its time budget", backend), cause).
		WithDetail("backend", backend)
}

// MalformedHit creates an error for a search hit missing required fields.
// Fusion recovers by skipping the offending hit.
func MalformedHit(message string) *BridgeError {
	return New(ErrCodeMalformedHit, message, nil)
}

// ExternalService creates an error for an unreachable external collaborator.
func ExternalService(code, message string, cause error) *BridgeError {
	return New(code, message, cause)
}

// Internal creates an internal error.
func Internal(message string, cause error) *BridgeError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a BridgeError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := err.(*BridgeError); ok {
		return be.Retryable
	}
	return false
}

// IsValidation reports whether the error belongs to the validation category.
func IsValidation(err error) bool {
	if be, ok := err.(*BridgeError); ok {
		return be.Category == CategoryValidation
	}
	return false
}

// GetCode extracts the error code from a BridgeError.
// Returns empty string if not a BridgeError.
func GetCode(err error) string {
	if be, ok := err.(*BridgeError); ok {
		return be.Code
	}
	return ""
}

// GetCategory extracts the category from a BridgeError.
// Returns empty string if not a BridgeError.
func GetCategory(err error) Category {
	if be, ok := err.(*BridgeError); ok {
		return be.Category
	}
	return ""
}
