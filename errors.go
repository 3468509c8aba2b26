package agrama

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy every primitive and index reports
// through.
type Kind string

const (
	// KindInvalidArgument marks malformed input: unknown primitive, weight
	// sum > 1, a zero history limit, and similar caller mistakes.
	KindInvalidArgument Kind = "InvalidArgument"
	// KindNotFound marks an absent key or graph node.
	KindNotFound Kind = "NotFound"
	// KindOutOfMemory marks an allocation failure; the primitive is aborted.
	KindOutOfMemory Kind = "OutOfMemory"
	// KindConflict marks optimistic-concurrency contention that exceeded the
	// dispatcher's retry budget.
	KindConflict Kind = "Conflict"
	// KindCancelled marks a primitive whose cancellation token fired before
	// its write lock was acquired.
	KindCancelled Kind = "Cancelled"
	// KindInternal marks an invariant violation. The response is fatal but
	// the process keeps serving other requests.
	KindInternal Kind = "Internal"
)

// Error wraps an underlying error with the primitive/operation that raised
// it and the taxonomy kind it belongs to.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("agrama: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("agrama: %s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error's kind sentinel or its
// wrapped error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return errors.Is(e.Err, target)
}

// NewError builds an *Error for the given kind/op/cause. err may be nil, in
// which case the Kind's default message is used.
func NewError(kind Kind, op string, err error) *Error {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind carried by err, defaulting to KindInternal for
// errors that never went through NewError (a programming mistake we still
// want to surface, never silently swallow).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
