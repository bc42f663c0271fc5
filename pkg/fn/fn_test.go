package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Error("Ok result flags wrong")
	}
	if v, err := r.Unwrap(); v != 42 || err != nil {
		t.Errorf("Unwrap = (%d, %v)", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Error("Err result should not be ok")
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Errorf("UnwrapOr = %d", got)
	}

	if fp := FromPair(1, error(nil)); fp.IsErr() {
		t.Error("FromPair with nil error should be ok")
	}
	if fp := FromPair(0, errors.New("x")); fp.IsOk() {
		t.Error("FromPair with error should be err")
	}
}

func TestPipeline_ShortCircuits(t *testing.T) {
	calls := 0
	inc := func(_ context.Context, n int) Result[int] { calls++; return Ok(n + 1) }
	fail := func(_ context.Context, n int) Result[int] { calls++; return Errf[int]("stop at %d", n) }

	r := Pipeline[int](inc, fail, inc, inc)(context.Background(), 0)
	if r.IsOk() {
		t.Error("expected pipeline failure")
	}
	if calls != 2 {
		t.Errorf("stages after a failure must not run, calls = %d", calls)
	}
}

func TestMapAndTapStage(t *testing.T) {
	double := MapStage(func(n int) int { return n * 2 })
	seen := 0
	tap := TapStage(func(_ context.Context, n int) { seen = n })

	r := Pipeline[int](double, tap)(context.Background(), 21)
	v, err := r.Unwrap()
	if err != nil || v != 42 || seen != 42 {
		t.Errorf("got (%d, %v), tap saw %d", v, err, seen)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[string] {
		attempts++
		if attempts < 3 {
			return Errf[string]("attempt %d", attempts)
		}
		return Ok("done")
	})
	if v, err := r.Unwrap(); err != nil || v != "done" {
		t.Errorf("got (%q, %v)", v, err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d", attempts)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	boom := errors.New("boom")
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		return Err[int](boom)
	})
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Errorf("expected last error, got %v", err)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour}
	r := Retry(ctx, opts, func(context.Context) Result[int] {
		return Errf[int]("always fails")
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
