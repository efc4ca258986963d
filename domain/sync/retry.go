package sync

import (
	"fmt"
	"time"
)

// Retry policy defaults.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 5 * time.Second
	DefaultBackoff      = 2.0
)

// RetryPolicy bounds per-batch retries with exponential backoff. The
// policy lives in the sync controller and is decoupled from any external
// task engine.
type RetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	backoff      float64
}

// NewRetryPolicy creates a RetryPolicy.
func NewRetryPolicy(maxAttempts int, initialDelay time.Duration, backoff float64) (RetryPolicy, error) {
	if maxAttempts < 1 {
		return RetryPolicy{}, fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}
	if initialDelay < 0 {
		return RetryPolicy{}, fmt.Errorf("initial delay must not be negative, got %v", initialDelay)
	}
	if backoff < 1 {
		return RetryPolicy{}, fmt.Errorf("backoff factor must be at least 1, got %v", backoff)
	}
	return RetryPolicy{maxAttempts: maxAttempts, initialDelay: initialDelay, backoff: backoff}, nil
}

// DefaultRetryPolicy returns the standard policy: 3 attempts, 5s initial
// delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
		backoff:      DefaultBackoff,
	}
}

// MaxAttempts returns how many attempts a batch gets before the run
// fails.
func (p RetryPolicy) MaxAttempts() int { return p.maxAttempts }

// InitialDelay returns the delay before the first retry.
func (p RetryPolicy) InitialDelay() time.Duration { return p.initialDelay }

// Backoff returns the delay multiplier between retries.
func (p RetryPolicy) Backoff() float64 { return p.backoff }

// Delay returns the wait before retrying after the given failed attempt
// (1-based): initialDelay * backoff^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.initialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.backoff
	}
	return time.Duration(delay)
}
