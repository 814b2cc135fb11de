package pyferris

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for RetryExecutor observability.
const (
	RetryAttemptsTotal  = metricz.Key("retry.attempts.total")
	RetrySuccessesTotal = metricz.Key("retry.successes.total")
	RetryFailuresTotal  = metricz.Key("retry.failures.total")
	RetryAttemptCurrent = metricz.Key("retry.attempt.current")
)

// Span names and tags for RetryExecutor.
const (
	RetryProcessSpan = tracez.Key("retry.process")
	RetryAttemptSpan = tracez.Key("retry.attempt")

	RetryTagMaxAttempts = tracez.Tag("retry.max_attempts")
	RetryTagAttempt     = tracez.Tag("retry.attempt")
	RetryTagSuccess     = tracez.Tag("retry.success")
	RetryTagError       = tracez.Tag("retry.error")

	RetryEventAttempt   = hookz.Key("retry.attempt")
	RetryEventSuccess   = hookz.Key("retry.success")
	RetryEventExhausted = hookz.Key("retry.exhausted")
)

// RetryEvent is emitted via hooks after each attempt, success, or
// exhaustion.
type RetryEvent struct {
	Name          string
	AttemptNumber int
	MaxAttempts   int
	Success       bool
	Error         error
	Duration      time.Duration
	TotalDuration time.Duration
	Timestamp     time.Time
}

// BackoffPolicy computes the delay before the (attempt+1)-th retry,
// where attempt is 0-based. Implementations are immutable snapshots
// captured at RetryExecutor construction; delays are not re-read
// mid-retry.
type BackoffPolicy interface {
	Delay(attempt int) time.Duration
}

// FixedBackoff always waits the same delay between attempts.
type FixedBackoff struct{ Initial time.Duration }

// Delay implements BackoffPolicy.
func (b FixedBackoff) Delay(int) time.Duration { return b.Initial }

// ExponentialBackoff waits initial*multiplier^attempt, capped at max.
type ExponentialBackoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// NewExponentialBackoff builds an ExponentialBackoff with the given
// parameters.
func NewExponentialBackoff(initial, max time.Duration, multiplier float64) ExponentialBackoff {
	return ExponentialBackoff{Initial: initial, Max: max, Multiplier: multiplier}
}

// Delay implements BackoffPolicy.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		d *= b.Multiplier
	}
	delay := time.Duration(d)
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}

// LinearBackoff waits initial+increment*attempt.
type LinearBackoff struct {
	Initial   time.Duration
	Increment time.Duration
}

// Delay implements BackoffPolicy.
func (b LinearBackoff) Delay(attempt int) time.Duration {
	return b.Initial + time.Duration(attempt)*b.Increment
}

// RetryExecutor re-invokes a Callable under a configured backoff
// schedule until it succeeds, attempts are exhausted, or the error is
// non-retryable. CRITICAL: RetryExecutor is stateful observability
// (metrics/hooks) aggregated across calls — construct it once and reuse
// it, the same way CircuitBreaker must be reused.
type RetryExecutor struct {
	name        string
	processor   Callable
	maxAttempts int
	policy      BackoffPolicy
	retryable   []string // substrings matched against the error's kind name; empty means "everything is retryable"
	clock       clockz.Clock
	mu          sync.RWMutex

	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[RetryEvent]
}

// NewRetryExecutor creates a RetryExecutor. maxAttempts < 1 is clamped
// to 1. A nil policy defaults to FixedBackoff{0} (immediate retry).
func NewRetryExecutor(name string, processor Callable, maxAttempts int, policy BackoffPolicy, retryableKinds ...string) *RetryExecutor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if policy == nil {
		policy = FixedBackoff{}
	}
	registry := metricz.New()
	registry.Counter(RetryAttemptsTotal)
	registry.Counter(RetrySuccessesTotal)
	registry.Counter(RetryFailuresTotal)
	registry.Gauge(RetryAttemptCurrent)

	return &RetryExecutor{
		name:        name,
		processor:   processor,
		maxAttempts: maxAttempts,
		policy:      policy,
		retryable:   retryableKinds,
		clock:       clockz.RealClock,
		metrics:     registry,
		tracer:      tracez.New(),
		hooks:       hookz.New[RetryEvent](),
	}
}

// WithClock sets a custom clock, used for backoff sleeps, so tests can
// run without real delays.
func (r *RetryExecutor) WithClock(c clockz.Clock) *RetryExecutor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = c
	return r
}

// isRetryable reports whether err's kind name substring-matches any
// configured retryable kind. An empty retryable set means everything is
// retryable.
func (r *RetryExecutor) isRetryable(err error) bool {
	if len(r.retryable) == 0 {
		return true
	}
	kind := errorKindName(err)
	for _, substr := range r.retryable {
		if strings.Contains(kind, substr) {
			return true
		}
	}
	return false
}

func errorKindName(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return err.Error()
}

// Call implements Callable, re-invoking the wrapped processor per the
// configured backoff policy.
func (r *RetryExecutor) Call(ctx context.Context, args []any) (result any, err error) {
	r.mu.RLock()
	maxAttempts := r.maxAttempts
	clock := r.clock
	r.mu.RUnlock()

	ctx, span := r.tracer.StartSpan(ctx, RetryProcessSpan)
	defer span.Finish()
	span.SetTag(RetryTagMaxAttempts, fmt.Sprintf("%d", maxAttempts))

	totalStart := clock.Now()
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		r.metrics.Gauge(RetryAttemptCurrent).Set(float64(attempt + 1))
		r.metrics.Counter(RetryAttemptsTotal).Inc()

		attemptStart := clock.Now()
		value, callErr := r.processor.Call(ctx, args)
		attemptDuration := clock.Since(attemptStart)

		if r.hooks.ListenerCount(RetryEventAttempt) > 0 {
			_ = r.hooks.Emit(ctx, RetryEventAttempt, RetryEvent{ //nolint:errcheck
				Name: r.name, AttemptNumber: attempt + 1, MaxAttempts: maxAttempts,
				Success: callErr == nil, Error: callErr, Duration: attemptDuration, Timestamp: clock.Now(),
			})
		}

		if callErr == nil {
			r.metrics.Counter(RetrySuccessesTotal).Inc()
			r.metrics.Gauge(RetryAttemptCurrent).Set(0)
			if r.hooks.ListenerCount(RetryEventSuccess) > 0 {
				_ = r.hooks.Emit(ctx, RetryEventSuccess, RetryEvent{ //nolint:errcheck
					Name: r.name, AttemptNumber: attempt + 1, MaxAttempts: maxAttempts,
					Success: true, TotalDuration: clock.Since(totalStart), Timestamp: clock.Now(),
				})
			}
			span.SetTag(RetryTagSuccess, "true")
			return value, nil
		}

		lastErr = callErr
		span.SetTag(RetryTagError, callErr.Error())

		last := attempt == maxAttempts-1
		if last || !r.isRetryable(callErr) {
			break
		}

		delay := r.policy.Delay(attempt)
		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			r.metrics.Gauge(RetryAttemptCurrent).Set(0)
			return nil, &Error{Kind: Timeout, Err: ctx.Err(), Canceled: errors.Is(ctx.Err(), context.Canceled)}
		}
	}

	r.metrics.Counter(RetryFailuresTotal).Inc()
	r.metrics.Gauge(RetryAttemptCurrent).Set(0)
	span.SetTag(RetryTagSuccess, "false")
	if r.hooks.ListenerCount(RetryEventExhausted) > 0 {
		_ = r.hooks.Emit(ctx, RetryEventExhausted, RetryEvent{ //nolint:errcheck
			Name: r.name, MaxAttempts: maxAttempts, Success: false, Error: lastErr,
			TotalDuration: clock.Since(totalStart), Timestamp: clock.Now(),
		})
	}
	return nil, wrapErr(TaskFailed, r.name, lastErr)
}

// Name returns the executor's configured name.
func (r *RetryExecutor) Name() string { return r.name }

// Metrics returns the metrics registry for this executor.
func (r *RetryExecutor) Metrics() *metricz.Registry { return r.metrics }

// OnAttempt registers a handler called after every attempt.
func (r *RetryExecutor) OnAttempt(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventAttempt, handler)
	return err
}

// OnSuccess registers a handler called when an attempt succeeds.
func (r *RetryExecutor) OnSuccess(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventSuccess, handler)
	return err
}

// OnExhausted registers a handler called when all attempts fail.
func (r *RetryExecutor) OnExhausted(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventExhausted, handler)
	return err
}

// Close releases the executor's tracer and hook resources.
func (r *RetryExecutor) Close() error {
	r.tracer.Close()
	r.hooks.Close()
	return nil
}
