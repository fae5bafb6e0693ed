package model

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it without knowing the
// concrete error.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindCascadeIncomplete Kind = "CASCADE_INCOMPLETE"
	KindPartialSuccess    Kind = "PARTIAL_SUCCESS"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindUnexpected        Kind = "UNEXPECTED"
)

// Error is the typed result every service returns for expected failures.
// Anything that is not an *Error is treated as KindUnexpected.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets a kind-only sentinel (no message) match every error of that kind,
// so errors.Is(err, ErrNotFound) works for ErrPostNotFound too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind-only sentinels.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrCascadeIncomplete = &Error{Kind: KindCascadeIncomplete}
	ErrPartialSuccess    = &Error{Kind: KindPartialSuccess}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
)

// NewError builds a typed error with a caller-facing message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError attaches a kind and message to an underlying cause.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validationf is shorthand for input errors.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err. Nil has no kind; unknown errors are
// Unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// MessageOf returns the caller-facing message of a typed error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return ""
}

// IsPartialSuccess reports whether the primary write committed but a
// follow-up step did not.
func IsPartialSuccess(err error) bool {
	return KindOf(err) == KindPartialSuccess
}

// PartialSuccess wraps the failure of a secondary step that ran after the
// primary write was committed.
func PartialSuccess(message string, err error) *Error {
	return &Error{Kind: KindPartialSuccess, Message: message, Err: err}
}

// CascadeIncomplete wraps the failure of a multi-row cleanup that blocked a
// delete from completing.
func CascadeIncomplete(message string, err error) *Error {
	return &Error{Kind: KindCascadeIncomplete, Message: message, Err: err}
}
