package pyferris

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies the failures the system itself raises, distinct
// from errors surfaced from user callables (see Error.Kind == TaskFailed).
type ErrorKind string

// Error kinds the system raises. See ERROR HANDLING DESIGN.
const (
	InvalidArgument  ErrorKind = "invalid_argument"
	NotFound         ErrorKind = "not_found"
	Timeout          ErrorKind = "timeout"
	CapacityExceeded ErrorKind = "capacity_exceeded"
	IndexOutOfBounds ErrorKind = "index_out_of_bounds"
	CircuitOpen      ErrorKind = "circuit_open"
	ReduceEmpty      ErrorKind = "reduce_empty"
	TaskFailed       ErrorKind = "task_failed"
	Poisoned         ErrorKind = "poisoned"
	InvalidState     ErrorKind = "invalid_state"
)

// Error is the rich error type returned by pyferris components. It
// records where a failure occurred (Path), when, how long the failing
// operation ran, and whether it was a timeout or cancellation.
type Error struct {
	Timestamp time.Time
	Err       error
	Path      []string
	Kind      ErrorKind
	Duration  time.Duration
	Timeout   bool
	Canceled  bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	path := strings.Join(e.Path, " -> ")
	if path == "" {
		path = "unknown"
	}
	if e.Timeout {
		return fmt.Sprintf("%s: %s timed out after %v: %v", e.Kind, path, e.Duration, e.Err)
	}
	if e.Canceled {
		return fmt.Sprintf("%s: %s canceled after %v: %v", e.Kind, path, e.Duration, e.Err)
	}
	return fmt.Sprintf("%s: %s failed after %v: %v", e.Kind, path, e.Duration, e.Err)
}

// Unwrap supports errors.Is/errors.As against the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTimeout reports whether the failure was a timeout.
func (e *Error) IsTimeout() bool {
	if e == nil {
		return false
	}
	return e.Timeout || e.Kind == Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled reports whether the failure was a cancellation.
func (e *Error) IsCanceled() bool {
	if e == nil {
		return false
	}
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// wrapErr builds an *Error for a failure occurring in component name.
func wrapErr(kind ErrorKind, name string, err error) *Error {
	var inner *Error
	if errors.As(err, &inner) {
		inner.Path = append([]string{name}, inner.Path...)
		return inner
	}
	return &Error{
		Timestamp: time.Now(),
		Err:       err,
		Path:      []string{name},
		Kind:      kind,
	}
}

// recoverFromPanic converts a panic inside a wrapped call into a
// TaskFailed error instead of letting it cross into the carrier or
// caller goroutine. It must be called via defer.
func recoverFromPanic(result *any, err **Error, name string) {
	if r := recover(); r != nil {
		*result = nil
		*err = &Error{
			Timestamp: time.Now(),
			Err:       fmt.Errorf("panic: %v", r),
			Path:      []string{name},
			Kind:      TaskFailed,
		}
	}
}
