// Package errors augments the standard errors with a Wrap() method
// so package-level sentinels can carry a cause without being mutated.
//
//	var ErrCloneFailed = errors.New("clone failed")
//	...
//	return ErrCloneFailed.Wrap(err)
//
// The wrapped value still matches the sentinel with errors.Is.
package errors

import (
	stderr "errors"
	"fmt"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Errorf builds a new Error from a format string
func Errorf(format string, args ...interface{}) *Error {
	return New(fmt.Sprintf(format, args...))
}

// Error augments the standard error interface with a Wrap method.
type Error struct {
	msg    string
	err    error
	origin *Error
}

// Error message, followed by the cause when there is one
func (e *Error) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error. The receiver is left untouched: a copy carrying the cause is returned.
func (e *Error) Wrap(err error) *Error {
	origin := e
	if e.origin != nil {
		origin = e.origin
	}
	return &Error{msg: e.msg, err: err, origin: origin}
}

// Wrapf wraps a nested error and appends a formatted detail to the message
func (e *Error) Wrapf(err error, format string, args ...interface{}) *Error {
	w := e.Wrap(err)
	w.msg = e.msg + " (" + fmt.Sprintf(format, args...) + ")"
	return w
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || (e.origin != nil && e.origin == t)
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.Is)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
