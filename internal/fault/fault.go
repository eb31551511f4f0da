// Package fault provides typed domain errors for the simulation core.
// The surrounding API layer maps kinds to transport status codes;
// the core only needs the kinds to be distinguishable.
package fault

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound      // vault/room/inhabitant/incident/expedition id unresolved
	KindConflict      // entity in the wrong state for the operation
	KindInvalid       // out-of-range input (negative duration, etc.)
	KindCapacity      // storage overflow
)

// Error is the domain error type.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	return e.Msg
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Invalid creates an invalid-input error.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalid, Msg: fmt.Sprintf(format, args...)}
}

// Capacity creates a capacity-exceeded error.
func Capacity(format string, args ...any) *Error {
	return &Error{Kind: KindCapacity, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of err, or KindUnknown for non-domain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a not-found domain error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a conflict domain error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsInvalid reports whether err is an invalid-input domain error.
func IsInvalid(err error) bool { return KindOf(err) == KindInvalid }

// IsCapacity reports whether err is a capacity-exceeded domain error.
func IsCapacity(err error) bool { return KindOf(err) == KindCapacity }
