package pyferris

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

const (
	breakerClosed   = "closed"
	breakerOpen     = "open"
	breakerHalfOpen = "half-open"
)

// CircuitBreaker fails fast when a wrapped Callable has been failing
// repeatedly, and periodically probes for recovery. State transitions
// are serialized by a single lock covering the state, both counters,
// and the last-failure timestamp together, so there is never a window
// where one of those four fields is stale relative to the others.
//
// CRITICAL: CircuitBreaker is stateful. Construct it once and reuse it
// across calls; a fresh CircuitBreaker per call never opens.
type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	processor        Callable
	clock            clockz.Clock
	state            string
	lastFailTime     time.Time
	generation       int
	failureThreshold int
	successThreshold int
	failures         int
	successes        int
	resetTimeout     time.Duration
}

// NewCircuitBreaker creates a CircuitBreaker. failureThreshold < 1 is
// clamped to 1. The success threshold to close from HalfOpen defaults
// to 1 (spec.md requires only "Success -> Closed"); use
// SetSuccessThreshold to require more than one probe success.
func NewCircuitBreaker(name string, processor Callable, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		processor:        processor,
		failureThreshold: failureThreshold,
		successThreshold: 1,
		resetTimeout:     resetTimeout,
		state:            breakerClosed,
		clock:            clockz.RealClock,
	}
}

// Call implements Callable.
func (cb *CircuitBreaker) Call(ctx context.Context, args []any) (result any, err error) {
	cb.mu.Lock()

	if cb.state == breakerOpen && cb.clock.Since(cb.lastFailTime) >= cb.resetTimeout {
		cb.state = breakerHalfOpen
		cb.failures = 0
		cb.successes = 0
		cb.generation++
		capitan.Warn(ctx, SignalCircuitBreakerHalfOpen,
			FieldName.Field(cb.name), FieldState.Field(cb.state), FieldGeneration.Field(cb.generation),
		)
	}

	state := cb.state
	generation := cb.generation

	if state == breakerOpen {
		capitan.Error(ctx, SignalCircuitBreakerRejected,
			FieldName.Field(cb.name), FieldState.Field(state), FieldGeneration.Field(generation),
		)
		cb.mu.Unlock()
		return nil, &Error{Kind: CircuitOpen, Err: errCircuitOpen, Path: []string{cb.name}, Timestamp: cb.clock.Now()}
	}
	cb.mu.Unlock()

	result, err = cb.processor.Call(ctx, args)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Another goroutine already transitioned the generation (e.g. a
	// concurrent HalfOpen probe failed first): don't double-count.
	if cb.generation != generation {
		return result, err
	}

	if err != nil {
		cb.onFailure(ctx)
		return result, wrapErr(TaskFailed, cb.name, err)
	}
	cb.onSuccess(ctx)
	return result, nil
}

func (cb *CircuitBreaker) onSuccess(ctx context.Context) {
	switch cb.state {
	case breakerClosed:
		cb.failures = 0
	case breakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = breakerClosed
			cb.failures = 0
			cb.successes = 0
			capitan.Info(ctx, SignalCircuitBreakerClosed,
				FieldName.Field(cb.name), FieldState.Field(cb.state),
			)
		}
	}
}

func (cb *CircuitBreaker) onFailure(ctx context.Context) {
	cb.lastFailTime = cb.clock.Now()
	switch cb.state {
	case breakerClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = breakerOpen
			capitan.Error(ctx, SignalCircuitBreakerOpened,
				FieldName.Field(cb.name), FieldState.Field(cb.state), FieldFailures.Field(cb.failures),
			)
		}
	case breakerHalfOpen:
		cb.state = breakerOpen
		cb.failures = 0
		cb.successes = 0
		capitan.Error(ctx, SignalCircuitBreakerOpened,
			FieldName.Field(cb.name), FieldState.Field(cb.state),
		)
	}
}

// State returns the current state, resolving an Open->HalfOpen
// transition that is due but hasn't been observed by a call yet.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == breakerOpen && cb.clock.Since(cb.lastFailTime) >= cb.resetTimeout {
		return breakerHalfOpen
	}
	return cb.state
}

// SetSuccessThreshold sets how many consecutive successes in HalfOpen
// close the circuit.
func (cb *CircuitBreaker) SetSuccessThreshold(n int) *CircuitBreaker {
	if n < 1 {
		n = 1
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.successThreshold = n
	return cb
}

// WithClock sets a custom clock for testing.
func (cb *CircuitBreaker) WithClock(c clockz.Clock) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.clock = c
	return cb
}

// Reset forces the circuit unconditionally to Closed with counter=0.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.failures = 0
	cb.successes = 0
	cb.generation++
}

var errCircuitOpen = &simpleErr{"circuit breaker is open"}
