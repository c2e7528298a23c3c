package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
)

// ErrCircuitOpen is returned when the breaker rejects a call without running it.
var ErrCircuitOpen = errors.New("circuit open")

// Breaker stops calling a failing dependency for a while after consecutive
// failures. A nil Breaker runs every call.
type Breaker[T any] struct {
	cb circuitbreaker.CircuitBreaker[T]
}

// NewBreaker opens after threshold consecutive failures and stays open for
// timeout. A threshold of zero or less returns nil.
func NewBreaker[T any](threshold int, timeout time.Duration) *Breaker[T] {
	if threshold <= 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Breaker[T]{
		cb: circuitbreaker.New[T](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    timeout,
			Timeout:     timeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is positive
			},
		}),
	}
}

// Execute runs fn through the breaker.
func (b *Breaker[T]) Execute(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	if b == nil {
		return fn(ctx)
	}
	called := false
	result, err := b.cb.Execute(ctx, func(ctx context.Context) (T, error) {
		called = true
		return fn(ctx)
	})
	if err != nil && !called {
		return result, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return result, err
}

// State returns the breaker state name (closed, open, half-open).
func (b *Breaker[T]) State() string {
	if b == nil {
		return "disabled"
	}
	return b.cb.State().String()
}
