// Package errors provides structured error types for graphlens.
//
// Every error that crosses a package boundary carries a machine-readable
// [Code] so that the CLI, the TUI, and the reference backend can decide how
// to react without matching on message text:
//
//   - INVALID_*: rejected input (ids, filters, config values)
//   - ROOT_PROTECTED: an operation tried to remove the centre vertex
//   - NOT_FOUND: an id that is not materialized locally or on the backend
//   - NETWORK_ERROR, TIMEOUT: transport failures talking to the backend
//   - REJECTED: the backend answered with success=false
//   - STALE_RESPONSE: an expansion arrived after its vertex was collapsed
//
// # Usage
//
//	err := errors.New(errors.ErrCodeRootProtected, "cannot remove centre vertex %s", id)
//	if errors.Is(err, errors.ErrCodeRootProtected) {
//	    // tell the user
//	}
//
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "expand %s", id)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidID     Code = "INVALID_ID"
	ErrCodeInvalidFilter Code = "INVALID_FILTER"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Graph state errors
	ErrCodeInvalidOperation Code = "INVALID_OPERATION"
	ErrCodeRootProtected    Code = "ROOT_PROTECTED"
	ErrCodeFeatureDisabled  Code = "FEATURE_DISABLED"
	ErrCodeStaleResponse    Code = "STALE_RESPONSE"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Backend errors
	ErrCodeNetwork  Code = "NETWORK_ERROR"
	ErrCodeTimeout  Code = "TIMEOUT"
	ErrCodeRejected Code = "REJECTED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets sentinel *Error values match any *Error with the same code, so
// callers can write errors.Is(err, explore.ErrRootProtected).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Sentinel returns a message-less *Error usable as an errors.Is target for
// every error carrying code.
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
