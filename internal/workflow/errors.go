package workflow

import (
	"errors"
	"fmt"
)

// Error wraps an activity failure with the workflow and activity that raised
// it. Errors nest when one workflow invokes another, so callers should use
// RootCause rather than a single Unwrap to reach the domain-level cause.
type Error struct {
	workflow string
	activity string
	err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.activity != "" {
		return fmt.Sprintf("workflow %s: activity %s: %v", e.workflow, e.activity, e.err)
	}
	return fmt.Sprintf("workflow %s: %v", e.workflow, e.err)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Workflow returns the name of the workflow that failed.
func (e *Error) Workflow() string {
	if e == nil {
		return ""
	}
	return e.workflow
}

// Activity returns the name of the failing activity, if known.
func (e *Error) Activity() string {
	if e == nil {
		return ""
	}
	return e.activity
}

// RootCause returns the error immediately below the deepest *Error in the
// cause chain. Workflow failures may arrive wrapped in several layers when
// pipelines nest; callers match on the returned cause instead of the generic
// wrapper.
func RootCause(err error) error {
	if err == nil {
		return nil
	}
	root := err
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if wfErr, ok := cur.(*Error); ok && wfErr.err != nil {
			root = wfErr.err
		}
	}
	return root
}
