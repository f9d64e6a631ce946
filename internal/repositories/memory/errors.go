package memory

import "fmt"

// Error implements repositories.RepositoryError for the in-memory backend.
type Error struct {
	op       string
	err      error
	notFound bool
	conflict bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing aggregate.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict reports whether the error represents a stale or duplicate write.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

// IsUnavailable always reports false; the in-memory backend has no outages.
func (e *Error) IsUnavailable() bool {
	return false
}

func newError(op string, err error, notFound, conflict bool) *Error {
	return &Error{op: op, err: err, notFound: notFound, conflict: conflict}
}
