// Package apierror provides the orchestrator's error taxonomy: a single
// typed error carrying a stable code, an HTTP status, a CLI exit code,
// and an optional wrapped cause. Every service boundary returns one of
// the sentinels in this package (or a value wrapping one) rather than a
// bare error, so the CLI and HTTP façades can map failures to exit codes
// and status codes without re-deriving the classification.
package apierror

import "fmt"

// Error is the orchestrator's error type.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
	ExitCode   int
	RawError   error
}

func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.RawError != nil {
		str += fmt.Sprintf(" (cause: %v)", e.RawError)
	}
	return str
}

// Is implements errors.Is by comparing codes, so errors.Is(err,
// apierror.ErrNoCapacity) works after WrapError changes the message.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.RawError
}

// NewError creates a new error with the given code and message, with
// HTTPStatus 500 and ExitCode 1 (the "other" classification).
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: 500, ExitCode: 1}
}

// WrapError copies a sentinel's Code/HTTPStatus/ExitCode, substituting a
// caller-supplied message and raw cause. Used at service boundaries to
// attach context without losing the error's classification.
func WrapError(base *Error, message string, raw error) *Error {
	return &Error{
		Code:       base.Code,
		Message:    message,
		HTTPStatus: base.HTTPStatus,
		ExitCode:   base.ExitCode,
		RawError:   raw,
	}
}
