package pyferris

import (
	"context"
	"errors"
	"testing"
)

func TestWrapErr(t *testing.T) {
	base := errors.New("boom")
	wrapped := wrapErr(TaskFailed, "outer", base)
	if wrapped.Kind != TaskFailed {
		t.Errorf("expected kind %s, got %s", TaskFailed, wrapped.Kind)
	}
	if len(wrapped.Path) != 1 || wrapped.Path[0] != "outer" {
		t.Errorf("unexpected path: %v", wrapped.Path)
	}
	if !errors.Is(wrapped, base) {
		t.Error("expected errors.Is to unwrap to the base error")
	}
}

func TestWrapErrNested(t *testing.T) {
	base := errors.New("boom")
	inner := wrapErr(TaskFailed, "inner", base)
	outer := wrapErr(TaskFailed, "outer", inner)

	if len(outer.Path) != 2 || outer.Path[0] != "outer" || outer.Path[1] != "inner" {
		t.Errorf("expected path [outer inner], got %v", outer.Path)
	}
}

func TestErrorIsTimeoutCanceled(t *testing.T) {
	timeoutErr := &Error{Kind: Timeout, Err: context.DeadlineExceeded, Timeout: true}
	if !timeoutErr.IsTimeout() {
		t.Error("expected IsTimeout true")
	}
	if timeoutErr.IsCanceled() {
		t.Error("expected IsCanceled false")
	}

	canceledErr := &Error{Err: context.Canceled, Canceled: true}
	if !canceledErr.IsCanceled() {
		t.Error("expected IsCanceled true")
	}
}

func TestRecoverFromPanic(t *testing.T) {
	var result any
	var ferr *Error

	func() {
		defer recoverFromPanic(&result, &ferr, "test-component")
		panic("something broke")
	}()

	if ferr == nil {
		t.Fatal("expected a recovered error")
	}
	if ferr.Kind != TaskFailed {
		t.Errorf("expected TaskFailed, got %s", ferr.Kind)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
	if len(ferr.Path) != 1 || ferr.Path[0] != "test-component" {
		t.Errorf("unexpected path: %v", ferr.Path)
	}
}

func TestRecoverFromPanicNoPanic(t *testing.T) {
	var result any
	var ferr *Error

	func() {
		defer recoverFromPanic(&result, &ferr, "test-component")
		result = 42
	}()

	if ferr != nil {
		t.Errorf("expected no error, got %v", ferr)
	}
	if result != 42 {
		t.Errorf("expected result to survive, got %v", result)
	}
}
