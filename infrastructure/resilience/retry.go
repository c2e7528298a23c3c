// Package resilience wraps fortify retry and circuit breaking for the
// external calls of an analysis.
package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
)

// RetryPolicy configures exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, first call included.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration
	// Multiplier grows the delay between consecutive attempts.
	Multiplier float64
	// NonRetryable errors end the loop immediately.
	NonRetryable []error
}

// DefaultRetryPolicy returns 3 attempts waiting 4s then 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 4 * time.Second,
		Multiplier:   2,
	}
}

// Retrier retries a typed operation and counts what it did.
type Retrier[T any] struct {
	retry    retry.Retry[T]
	attempts atomic.Int64
	retries  atomic.Int64
}

// NewRetrier creates a retrier. Context cancellation is never retried.
func NewRetrier[T any](p RetryPolicy) *Retrier[T] {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	nonRetryable := append([]error{context.Canceled, context.DeadlineExceeded}, p.NonRetryable...)

	return &Retrier[T]{
		retry: retry.New[T](retry.Config{
			MaxAttempts:        p.MaxAttempts,
			InitialDelay:       p.InitialDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         p.Multiplier,
			NonRetryableErrors: nonRetryable,
		}),
	}
}

// Do runs fn until it succeeds or the policy gives up. attempt is 1-based.
func (r *Retrier[T]) Do(ctx context.Context, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var attempt int
	return r.retry.Do(ctx, func(ctx context.Context) (T, error) {
		attempt++
		r.attempts.Add(1)
		if attempt > 1 {
			r.retries.Add(1)
		}
		return fn(ctx, attempt)
	})
}

// Attempts returns the number of calls made through the retrier.
func (r *Retrier[T]) Attempts() int64 {
	return r.attempts.Load()
}

// Retries returns the number of calls that were retries.
func (r *Retrier[T]) Retries() int64 {
	return r.retries.Load()
}
