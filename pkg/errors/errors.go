// Package errors provides structured error types for cargo-upgrade.
//
// This package defines error codes and types that enable:
//   - Consistent fatal/non-fatal classification across the upgrade pipeline
//   - Machine-readable error codes for programmatic handling
//   - User-friendly messages rendered as a "Caused by:" chain by the CLI
//
// # Error Codes
//
// Codes map onto the failure taxonomy of an upgrade run:
//   - INVALID_*: malformed manifests, dependency entries, or user input
//   - WORKSPACE_*: workspace preconditions and membership discovery
//   - *_NOT_FOUND: missing versions, lock entries, or dependencies
//   - NETWORK_*: registry transport failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeVersionNotFound, "version %s of %s not found", v, name)
//	if errors.Is(err, errors.ErrCodeVersionNotFound) {
//	    // Handle missing pin
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidManifest, parseErr, "Unable to parse Cargo.toml")
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput            Code = "INVALID_INPUT"
	ErrCodeInvalidManifest         Code = "INVALID_MANIFEST"
	ErrCodeInvalidDependencyFormat Code = "INVALID_DEPENDENCY_FORMAT"
	ErrCodeInvalidPackage          Code = "INVALID_PACKAGE"

	// Workspace errors
	ErrCodeWorkspacePrecondition Code = "WORKSPACE_PRECONDITION"
	ErrCodeWorkspaceMetadata     Code = "WORKSPACE_METADATA"

	// Resource not found errors
	ErrCodeNotFound             Code = "NOT_FOUND"
	ErrCodeVersionNotFound      Code = "VERSION_NOT_FOUND"
	ErrCodeLockfileMissingEntry Code = "LOCKFILE_MISSING_ENTRY"
	ErrCodeDependencyNotFound   Code = "DEPENDENCY_NOT_FOUND"

	// Network errors
	ErrCodeNetwork             Code = "NETWORK_ERROR"
	ErrCodeRegistryUnsupported Code = "REGISTRY_UNSUPPORTED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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
// It unwraps the error chain looking for an *Error with a matching code,
// so a wrapped cause is found even when an outer layer carries another code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
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

// GetCode extracts the error code from an error, if available.
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

// Chain returns the user-facing messages of err and each of its causes,
// outermost first. *Error layers contribute their Message; any other error
// ends the chain with its full Error() text.
func Chain(err error) []string {
	var msgs []string
	for err != nil {
		e, ok := err.(*Error)
		if !ok {
			msgs = append(msgs, err.Error())
			return msgs
		}
		msgs = append(msgs, e.Message)
		err = e.Cause
	}
	return msgs
}

// IsFatal reports whether err should abort an upgrade run.
// Only DEPENDENCY_NOT_FOUND is a warning; everything else is fatal.
func IsFatal(err error) bool {
	return err != nil && GetCode(err) != ErrCodeDependencyNotFound
}
