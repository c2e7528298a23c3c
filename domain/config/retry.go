package config

import "time"

// LastDelay returns the longest delay the backoff schedule waits, which is
// the one before the final attempt.
func (r RetryConfig) LastDelay() time.Duration {
	if r.MaxAttempts <= 1 {
		return 0
	}
	d := float64(r.InitialDelay)
	for i := 2; i < r.MaxAttempts; i++ {
		d *= r.Multiplier
	}
	return time.Duration(d)
}
