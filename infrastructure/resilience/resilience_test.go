package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}
}

func TestDefaultRetryPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	if p.MaxAttempts != 3 || p.InitialDelay != 4*time.Second || p.Multiplier != 2 {
		t.Errorf("DefaultRetryPolicy() = %+v", p)
	}
}

func TestRetrier_SucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	r := NewRetrier[string](fastPolicy())
	got, err := r.Do(context.Background(), func(_ context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Do() = %q, want ok", got)
	}
	if r.Attempts() != 3 || r.Retries() != 2 {
		t.Errorf("attempts = %d, retries = %d, want 3 and 2", r.Attempts(), r.Retries())
	}
}

func TestRetrier_GivesUp(t *testing.T) {
	t.Parallel()

	r := NewRetrier[int](fastPolicy())
	calls := 0
	_, err := r.Do(context.Background(), func(context.Context, int) (int, error) {
		calls++
		return 0, errors.New("down")
	})
	if err == nil {
		t.Fatal("Do() should fail after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetrier_NonRetryable(t *testing.T) {
	t.Parallel()

	fatal := errors.New("bad request")
	p := fastPolicy()
	p.NonRetryable = []error{fatal}
	r := NewRetrier[int](p)

	calls := 0
	_, err := r.Do(context.Background(), func(context.Context, int) (int, error) {
		calls++
		return 0, fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("err = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b := NewBreaker[string](2, time.Minute)
	if b.State() != "closed" {
		t.Errorf("initial State() = %q, want closed", b.State())
	}

	fail := func(context.Context) (string, error) { return "", errors.New("down") }
	_, _ = b.Execute(context.Background(), fail)
	_, _ = b.Execute(context.Background(), fail)

	called := false
	_, err := b.Execute(context.Background(), func(context.Context) (string, error) {
		called = true
		return "ok", nil
	})
	if called {
		t.Error("open breaker should not run the call")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if !strings.Contains(b.State(), "open") {
		t.Errorf("State() = %q, want open", b.State())
	}
}

func TestBreaker_NilPassesThrough(t *testing.T) {
	t.Parallel()

	b := NewBreaker[int](0, 0)
	if b != nil {
		t.Fatal("threshold 0 should disable the breaker")
	}
	got, err := b.Execute(context.Background(), func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("Execute() = %d, %v", got, err)
	}
	if b.State() != "disabled" {
		t.Errorf("State() = %q", b.State())
	}
}
