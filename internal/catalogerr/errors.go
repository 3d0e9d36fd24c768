// Package catalogerr defines the error taxonomy shared by every catalog
// component. It is grounded on the internal/common/error_handler.go
// shape (typed constructors, Is* predicates) but generalizes its
// string-prefix convention to a typed Code, since the core returns typed
// results to its only caller rather than HTTP response bodies.
package catalogerr

import (
	"errors"
	"fmt"
)

// Code enumerates the taxonomy of §7.
type Code string

const (
	CodeNotFound         Code = "NotFound"
	CodeAmbiguous        Code = "Ambiguous"
	CodePermissionDenied Code = "PermissionDenied"
	CodeInvalidArgument  Code = "InvalidArgument"
	CodePrecondition     Code = "Precondition"
	CodeConflict         Code = "Conflict"
	CodeTimeout          Code = "Timeout"
	CodeInternal         Code = "Internal"
)

// Error is the typed error every catalog operation returns on failure.
type Error struct {
	Code    Code
	Message string
	// Cause is the underlying error for Internal failures, logged with full
	// context by the caller and never surfaced to the end user verbatim.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newErr(CodeNotFound, format, args...)
}

func Ambiguous(format string, args ...any) *Error {
	return newErr(CodeAmbiguous, format, args...)
}

func PermissionDenied(format string, args ...any) *Error {
	return newErr(CodePermissionDenied, format, args...)
}

func InvalidArgument(format string, args ...any) *Error {
	return newErr(CodeInvalidArgument, format, args...)
}

func Precondition(format string, args ...any) *Error {
	return newErr(CodePrecondition, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newErr(CodeConflict, format, args...)
}

func Timeout(format string, args ...any) *Error {
	return newErr(CodeTimeout, format, args...)
}

// Internal wraps an adaptor/scheduler I/O failure. The cause is retained so
// the caller can log full context while surfacing the error opaquely.
func Internal(cause error, format string, args ...any) *Error {
	e := newErr(CodeInternal, format, args...)
	e.Cause = cause
	return e
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func IsNotFound(err error) bool         { return Is(err, CodeNotFound) }
func IsAmbiguous(err error) bool        { return Is(err, CodeAmbiguous) }
func IsPermissionDenied(err error) bool { return Is(err, CodePermissionDenied) }
func IsInvalidArgument(err error) bool  { return Is(err, CodeInvalidArgument) }
func IsPrecondition(err error) bool     { return Is(err, CodePrecondition) }
func IsConflict(err error) bool         { return Is(err, CodeConflict) }
func IsTimeout(err error) bool          { return Is(err, CodeTimeout) }
func IsInternal(err error) bool         { return Is(err, CodeInternal) }
