// Package repository defines the error taxonomy shared by every store
// component. Callers of the stores see only these error kinds; no
// backing-store error type leaks through the API boundary.
package repository

import (
	"errors"
	"fmt"
)

// Kind sentinels. Match with errors.Is.
var (
	// ErrValidation reports null or malformed caller input, rejected
	// before any store call.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateKey reports a failed uniqueness precondition.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrItemNotFound reports an absent key, or a failed wrong-state
	// precondition. The two causes are intentionally merged so callers
	// cannot tell which applied.
	ErrItemNotFound = errors.New("item not found")

	// ErrStaleData reports a reverse-index result that failed
	// forward-verification.
	ErrStaleData = errors.New("stale data")

	// ErrClient reports caller or admin misuse, such as creating a
	// table that already exists.
	ErrClient = errors.New("repository client error")

	// ErrServer reports a backing-store failure after exhausting
	// retries. It is fatal for the current request.
	ErrServer = errors.New("repository server error")
)

// Error carries one taxonomy kind, a message, and an optional cause.
type Error struct {
	kind error
	msg  string
	err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Is matches the error against its kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.kind
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.err
}

// Validationf creates a Validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// DuplicateKeyf creates a DuplicateKey error.
func DuplicateKeyf(format string, args ...any) *Error {
	return &Error{kind: ErrDuplicateKey, msg: fmt.Sprintf(format, args...)}
}

// NotFoundf creates an ItemNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{kind: ErrItemNotFound, msg: fmt.Sprintf(format, args...)}
}

// StaleDataf creates a StaleData error.
func StaleDataf(format string, args ...any) *Error {
	return &Error{kind: ErrStaleData, msg: fmt.Sprintf(format, args...)}
}

// Clientf creates a RepositoryClient error wrapping cause.
func Clientf(cause error, format string, args ...any) *Error {
	return &Error{kind: ErrClient, msg: fmt.Sprintf(format, args...), err: cause}
}

// Serverf creates a RepositoryServer error wrapping cause.
func Serverf(cause error, format string, args ...any) *Error {
	return &Error{kind: ErrServer, msg: fmt.Sprintf(format, args...), err: cause}
}
