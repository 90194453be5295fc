// Package errors provides structured error types for the fm3 CLI and API.
//
// The layout engine itself reports problems with plain sentinel errors; the
// outer surfaces attach a machine-readable [Code] so that the CLI can print
// a short message and the HTTP API can choose a status.
//
// # Error Codes
//
//   - INVALID_*: input validation failures
//   - FILE_NOT_FOUND, TOO_LARGE: resource problems
//   - CANCELLED, UNAVAILABLE, INTERNAL_ERROR: runtime failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "unknown force model %q", name)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidGraph, origErr, "read %s", path)
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidGraph  Code = "INVALID_GRAPH"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource errors
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeTooLarge     Code = "TOO_LARGE"

	// Runtime errors
	ErrCodeCancelled   Code = "CANCELLED"
	ErrCodeUnavailable Code = "UNAVAILABLE"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
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

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error. Context cancellation maps
// to CANCELLED, any other uncoded error to INTERNAL_ERROR, and nil to "".
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeCancelled
	}
	return ErrCodeInternal
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message and the cause without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
