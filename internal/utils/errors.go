// Package utils provides logging, error classification and small helpers
// shared by the session, browser and server packages.
package utils

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents predefined error codes for categorization
type ErrorCode string

const (
	ErrCodeNetworkTimeout ErrorCode = "NETWORK_TIMEOUT"

	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG"

	ErrCodeNavigationFailed ErrorCode = "NAVIGATION_FAILED"
	ErrCodeSelectorNotFound ErrorCode = "SELECTOR_NOT_FOUND"
	ErrCodeParsingError     ErrorCode = "PARSING_ERROR"

	ErrCodeAuthFailed    ErrorCode = "AUTH_FAILED"
	ErrCodeBrowserFailed ErrorCode = "BROWSER_FAILED"

	ErrCodeUnknown ErrorCode = "UNKNOWN_ERROR"
)

// StructuredError carries a code and context alongside the original error.
type StructuredError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error unwrapping
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is matches another *StructuredError with the same code.
func (e *StructuredError) Is(target error) bool {
	if se, ok := target.(*StructuredError); ok {
		return e.Code == se.Code
	}
	return false
}

// WithContext adds contextual information to the error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ErrorBuilder provides a fluent interface for creating structured errors
type ErrorBuilder struct {
	error *StructuredError
}

// NewError creates a new error builder
func NewError(code ErrorCode, message string) *ErrorBuilder {
	return &ErrorBuilder{
		error: &StructuredError{
			Code:      code,
			Message:   message,
			Timestamp: time.Now(),
		},
	}
}

// WithCause sets the underlying cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.error.Cause = cause
	return eb
}

// WithContext adds contextual information
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.error.WithContext(key, value)
	return eb
}

// WithRetryable marks the error as retryable
func (eb *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	eb.error.Retryable = retryable
	return eb
}

// Build returns the constructed error
func (eb *ErrorBuilder) Build() *StructuredError {
	return eb.error
}

// CodeOf returns the code of the first StructuredError in err's chain.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeUnknown
}

// IsRetryable reports whether err is a StructuredError marked retryable.
func IsRetryable(err error) bool {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
