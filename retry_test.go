package pyferris

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

type countingCallable struct {
	failUntil int
	calls     int
	kind      ErrorKind
}

func (c *countingCallable) Call(_ context.Context, _ []any) (any, error) {
	c.calls++
	if c.calls <= c.failUntil {
		return nil, &Error{Kind: c.kind, Err: errors.New("transient")}
	}
	return "ok", nil
}

func TestRetryExecutorSucceedsAfterRetries(t *testing.T) {
	clock := clockz.NewFakeClock()
	proc := &countingCallable{failUntil: 2, kind: TaskFailed}
	r := NewRetryExecutor("flaky", proc, 5, FixedBackoff{Initial: 10 * time.Millisecond})
	r.WithClock(clock)
	defer r.Close()

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)
	go func() {
		v, err := r.Call(context.Background(), nil)
		resultCh <- v
		errCh <- err
	}()

	// Advance the clock enough times to cover each retry's backoff sleep.
	time.Sleep(10 * time.Millisecond)
	for i := 0; i < 2; i++ {
		clock.Advance(10 * time.Millisecond)
		clock.BlockUntilReady()
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for retry executor")
	}
	if v := <-resultCh; v != "ok" {
		t.Errorf("expected ok, got %v", v)
	}
	if proc.calls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", proc.calls)
	}
}

func TestRetryExecutorExhaustsAttempts(t *testing.T) {
	clock := clockz.NewFakeClock()
	proc := &countingCallable{failUntil: 100, kind: TaskFailed}
	r := NewRetryExecutor("always-fails", proc, 3, FixedBackoff{})
	r.WithClock(clock)
	defer r.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Call(context.Background(), nil)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	for i := 0; i < 2; i++ {
		clock.Advance(10 * time.Millisecond)
		clock.BlockUntilReady()
		time.Sleep(10 * time.Millisecond)
	}

	err := <-errCh
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if proc.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", proc.calls)
	}
}

func TestRetryExecutorNonRetryableStopsImmediately(t *testing.T) {
	proc := &countingCallable{failUntil: 100, kind: InvalidArgument}
	r := NewRetryExecutor("picky", proc, 5, FixedBackoff{}, "task_failed")
	defer r.Close()

	_, err := r.Call(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if proc.calls != 1 {
		t.Errorf("expected a non-retryable error to stop after 1 attempt, got %d", proc.calls)
	}
}

func TestBackoffPolicies(t *testing.T) {
	fixed := FixedBackoff{Initial: 50 * time.Millisecond}
	if fixed.Delay(0) != 50*time.Millisecond || fixed.Delay(5) != 50*time.Millisecond {
		t.Error("fixed backoff should never change")
	}

	exp := NewExponentialBackoff(10*time.Millisecond, 100*time.Millisecond, 2)
	if exp.Delay(0) != 10*time.Millisecond {
		t.Errorf("expected 10ms, got %v", exp.Delay(0))
	}
	if exp.Delay(1) != 20*time.Millisecond {
		t.Errorf("expected 20ms, got %v", exp.Delay(1))
	}
	if exp.Delay(10) != 100*time.Millisecond {
		t.Errorf("expected cap of 100ms, got %v", exp.Delay(10))
	}

	linear := LinearBackoff{Initial: 10 * time.Millisecond, Increment: 5 * time.Millisecond}
	if linear.Delay(0) != 10*time.Millisecond {
		t.Errorf("expected 10ms, got %v", linear.Delay(0))
	}
	if linear.Delay(3) != 25*time.Millisecond {
		t.Errorf("expected 25ms, got %v", linear.Delay(3))
	}
}

func TestRetryExecutorHooks(t *testing.T) {
	proc := &countingCallable{failUntil: 1, kind: TaskFailed}
	r := NewRetryExecutor("hooked", proc, 3, FixedBackoff{})
	defer r.Close()

	var attempts, successes int
	_ = r.OnAttempt(func(_ context.Context, _ RetryEvent) error {
		attempts++
		return nil
	})
	_ = r.OnSuccess(func(_ context.Context, _ RetryEvent) error {
		successes++
		return nil
	})

	if _, err := r.Call(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempt hooks, got %d", attempts)
	}
	if successes != 1 {
		t.Errorf("expected 1 success hook, got %d", successes)
	}
}
