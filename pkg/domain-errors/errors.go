// Package domainerrors provides coded errors for service boundaries.
//
// Services return these so transport layers can translate a stable code into
// an HTTP status without string matching. Infrastructure layers return
// pkg/platform/sentinel errors instead; services wrap those into coded
// errors before they cross a boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for boundary translation.
type Code string

const (
	// CodeInvalidInput marks malformed external input (bad UUID, bad JSON field).
	CodeInvalidInput Code = "invalid_input"

	// CodeValidation marks a field-level validation failure. These block a
	// step advance and are always recoverable by a user edit.
	CodeValidation Code = "validation"

	// CodeUnauthorized marks a missing or invalid credential.
	CodeUnauthorized Code = "unauthorized"

	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"

	// CodeConflict marks a remote-confirmed conflict, e.g. a CURP or phone
	// that is already registered. Not locally overridable.
	CodeConflict Code = "conflict"

	// CodeUnavailable marks an unreachable collaborator. Precondition checks
	// with this code may be explicitly overridden by the user.
	CodeUnavailable Code = "unavailable"

	// CodeInvariantViolation marks an illegal state transition attempt.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal marks everything else.
	CodeInternal Code = "internal"
)

// Error couples a code with a user-presentable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the user-presentable message, defaulting to a generic one.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
