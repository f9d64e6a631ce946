package workflow

import (
	"context"
	"errors"
	"strings"
)

var (
	errProcessorNameRequired = errors.New("workflow: processor name is required")
	errNoActivities          = errors.New("workflow: at least one activity is required")
)

// Activity is a single step of a processor sequence. Execute receives the
// shared operation state and may mutate it. Returning an error aborts the
// remaining sequence; the caller's surrounding transaction boundary must roll
// back writes issued by earlier activities of the same run.
type Activity[T any] interface {
	Name() string
	Execute(ctx context.Context, op T) error
}

// Processor runs a fixed, named, ordered sequence of activities against a
// shared operation context. The processor itself is stateless between runs.
type Processor[T any] struct {
	name       string
	activities []Activity[T]
}

// NewProcessor constructs a Processor with a fixed activity sequence.
func NewProcessor[T any](name string, activities ...Activity[T]) (*Processor[T], error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, errProcessorNameRequired
	}
	if len(activities) == 0 {
		return nil, errNoActivities
	}
	for _, activity := range activities {
		if activity == nil {
			return nil, errNoActivities
		}
	}
	return &Processor[T]{
		name:       trimmed,
		activities: append([]Activity[T](nil), activities...),
	}, nil
}

// Name returns the processor's workflow name.
func (p *Processor[T]) Name() string {
	return p.name
}

// DoActivities executes the activity sequence in order. The first failing
// activity aborts the run and its error is returned wrapped in *Error, tagged
// with the workflow and activity names.
func (p *Processor[T]) DoActivities(ctx context.Context, op T) error {
	for _, activity := range p.activities {
		if err := ctx.Err(); err != nil {
			return &Error{workflow: p.name, err: err}
		}
		if err := activity.Execute(ctx, op); err != nil {
			return &Error{workflow: p.name, activity: activity.Name(), err: err}
		}
	}
	return nil
}
