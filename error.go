package batchz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/clockz"
)

// Sentinel errors. Use errors.Is to classify a failure.
var (
	// ErrInvalidInput marks input that failed its validator or an adapter precondition.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyInput marks input that is well formed but carries nothing to process.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidFormat is returned by the input stage when the item is absent.
	ErrInvalidFormat = errors.New("invalid data format")
	// ErrOwnerFailure wraps anything a dispatcher owner returned or panicked with.
	ErrOwnerFailure = errors.New("owner failure")
	// ErrCapacity is returned when registering beyond a dispatcher's capacity.
	ErrCapacity = errors.New("dispatcher at capacity")
	// ErrDuplicateOwner is returned when an owner ID is already registered.
	ErrDuplicateOwner = errors.New("owner already registered")
	// ErrStageNotFound is returned by pipeline modification methods.
	ErrStageNotFound = errors.New("stage not found")
	// ErrPanic wraps a recovered panic.
	ErrPanic = errors.New("panic recovered")
)

// Error provides rich context about a failure inside a pipeline or chain.
// It records the path of identities from the outermost component down to
// the stage that failed, the input that started the run, and timing.
//
// Error is how a StageFailure is represented. Pipelines record it, count it
// and return the last good value; the caller may inspect it through
// Pipeline.Process, but Pipeline.Execute never surfaces it.
//
//	_, err := pipeline.Process(ctx, record)
//	var stageErr *batchz.Error[any]
//	if errors.As(err, &stageErr) {
//	    log.Printf("failed at %s after %v", strings.Join(stageErr.Names(), " -> "), stageErr.Duration)
//	}
type Error[T any] struct {
	Timestamp time.Time
	InputData T
	Err       error
	Path      []Identity
	Duration  time.Duration
	Timeout   bool
	Canceled  bool
}

// Error implements the error interface.
func (e *Error[T]) Error() string {
	location := strings.Join(e.Names(), " -> ")

	if e.Timeout {
		return fmt.Sprintf("%s timed out after %v: %v", location, e.Duration, e.Err)
	}
	if e.Canceled {
		return fmt.Sprintf("%s canceled after %v: %v", location, e.Duration, e.Err)
	}
	return fmt.Sprintf("%s failed after %v: %v", location, e.Duration, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error[T]) Unwrap() error {
	return e.Err
}

// Names returns the names along the error path.
func (e *Error[T]) Names() []string {
	names := make([]string, len(e.Path))
	for i, id := range e.Path {
		names[i] = id.Name()
	}
	return names
}

// IsTimeout reports whether the failure was caused by a deadline.
func (e *Error[T]) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled reports whether the failure was caused by cancellation.
func (e *Error[T]) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// recoverFromPanic converts a panic into an *Error so it can flow through the
// normal failure path, stamped by clock. Must be deferred.
func recoverFromPanic[T any](result *T, err *error, identity Identity, input T, clock clockz.Clock) {
	if r := recover(); r != nil {
		var zero T
		*result = zero
		*err = &Error[T]{
			Timestamp: clock.Now(),
			InputData: input,
			Err:       fmt.Errorf("%w: %v", ErrPanic, r),
			Path:      []Identity{identity},
		}
	}
}
