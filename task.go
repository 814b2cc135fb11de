package pyferris

import "context"

// Callable is the capability every user-supplied unit of work must
// implement: a single call taking a positional argument tuple and
// returning a value or an error. The scheduler and combinator kernel
// never inspect argument types beyond passing them through.
type Callable interface {
	Call(ctx context.Context, args []any) (any, error)
}

// CallableFunc adapts a plain function to the Callable interface, the
// way callers most often construct one.
type CallableFunc func(ctx context.Context, args []any) (any, error)

// Call implements Callable.
func (f CallableFunc) Call(ctx context.Context, args []any) (any, error) {
	return f(ctx, args)
}

// Task is an opaque unit of work: a Callable plus its argument tuple and
// a flag marking it as blocking. A Task is consumed exactly once, when a
// carrier executes it.
type Task struct {
	Callable Callable
	Args     []any
	Blocking bool

	id uint64
}

// ID returns the virtual-thread ID this task was submitted under. Zero
// until the task has been submitted to a Scheduler.
func (t *Task) ID() uint64 { return t.id }

// Cloner is an interface for types that can create deep copies of
// themselves. Nothing in this package calls Clone; the combinators pass
// elements to workers as they are.
type Cloner[T any] interface {
	Clone() T
}
