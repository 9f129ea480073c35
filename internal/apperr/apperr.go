// Package apperr defines the error taxonomy shared by every component.
// Handlers translate kinds to HTTP statuses; domain packages never import
// net/http.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindUnauthorized: no session, or the session failed verification.
	KindUnauthorized
	// KindForbidden: valid session, but ownership or CSRF checks failed.
	KindForbidden
	// KindNotFound: the referenced resource does not exist.
	KindNotFound
	// KindConflict: overlapping booking, or an invitation link that is
	// exhausted or expired at consume time.
	KindConflict
	// KindValidation: malformed or out-of-range input, rejected before any
	// business logic runs.
	KindValidation
	// KindTransient: store timeout or deadlock; safe to retry.
	KindTransient
)

type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Kind() Kind { return e.kind }

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

// KindOf extracts the taxonomy kind from err, or KindUnknown for errors that
// did not originate in this module.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func Validation(msg string) *Error   { return New(KindValidation, msg) }
func Transient(msg string, err error) *Error {
	return Wrap(KindTransient, msg, err)
}
