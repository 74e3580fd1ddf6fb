// Package errors defines the classified error taxonomy shared by every
// event store component.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// ErrorCode classifies a StoreError so callers and the resilient wrapper can
// decide how to react without string-matching messages.
type ErrorCode string

const (
	// ConcurrencyConflict means (aggregate_id, aggregate_version) already exists.
	ConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"
	// Transient means the underlying storage was unavailable, timed out, or deadlocked.
	Transient ErrorCode = "TRANSIENT"
	// Permanent means validation, serialization, or configuration is invalid.
	Permanent ErrorCode = "PERMANENT"
	// IntegrityError means a checksum or snapshot digest mismatch was detected on read.
	IntegrityError ErrorCode = "INTEGRITY_ERROR"
	// MigrationUnavailable means no migration chain exists between the stored and target schema version.
	MigrationUnavailable ErrorCode = "MIGRATION_UNAVAILABLE"
	// MigrationRefused means a migrator's applicability predicate rejected the payload.
	MigrationRefused ErrorCode = "MIGRATION_REFUSED"
	// CircuitOpen means the resilient wrapper's breaker is currently rejecting calls.
	CircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// NotFound means the read target is absent.
	NotFound ErrorCode = "NOT_FOUND"
)

// StoreError is the structured error type returned by every event store
// component. It always carries a classification so upstream code can switch
// on Code rather than parse Error().
type StoreError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a detail key/value pair and returns the receiver for chaining.
func (e *StoreError) WithDetail(key string, value interface{}) *StoreError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the wrapped cause and returns the receiver for chaining.
func (e *StoreError) WithCause(cause error) *StoreError {
	e.Cause = cause
	return e
}

// New creates a StoreError with the given classification.
func New(code ErrorCode, message string) *StoreError {
	_, file, line, _ := runtime.Caller(1)
	return &StoreError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		File:      file,
		Line:      line,
	}
}

// Newf creates a StoreError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *StoreError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap classifies an existing error as a StoreError.
func Wrap(err error, code ErrorCode, message string) *StoreError {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &StoreError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		File:      file,
		Line:      line,
		Cause:     err,
	}
}

// Wrapf classifies an existing error with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *StoreError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is reports whether err's chain contains a StoreError with the given code.
func Is(err error, code ErrorCode) bool {
	var storeErr *StoreError
	if As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}

// As finds the first StoreError in err's chain and assigns it to target.
func As(err error, target interface{}) bool {
	if err == nil {
		return false
	}
	if storeErr, ok := err.(*StoreError); ok {
		if targetPtr, ok := target.(**StoreError); ok {
			*targetPtr = storeErr
			return true
		}
	}
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return As(unwrapper.Unwrap(), target)
	}
	return false
}

// Code extracts the classification from an error, or "" if it is not a StoreError.
func Code(err error) ErrorCode {
	var storeErr *StoreError
	if As(err, &storeErr) {
		return storeErr.Code
	}
	return ""
}

// Details extracts the detail map from an error, or nil.
func Details(err error) map[string]interface{} {
	var storeErr *StoreError
	if As(err, &storeErr) {
		return storeErr.Details
	}
	return nil
}

// IsRetryable reports whether the resilient wrapper should retry this error.
// Transient errors are always retryable; ConcurrencyConflict is retryable
// only with a bounded attempt count enforced by the caller.
func IsRetryable(err error) bool {
	switch Code(err) {
	case Transient, ConcurrencyConflict:
		return true
	default:
		return false
	}
}
