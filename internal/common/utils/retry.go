// Package utils holds small helpers shared by the registry adapters.
package utils

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"dday-scheduler/internal/common/errors"
)

// RetryConfig holds configuration for retry operations with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt)
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay caps exponential growth
	MaxDelay time.Duration

	// BackoffFactor is the multiplier for exponential backoff (e.g., 2.0 doubles delay)
	BackoffFactor float64

	// JitterFactor adds randomness to delays (0.0-1.0, where 0.1 = 10% jitter)
	JitterFactor float64

	// RetryableErrors determines which errors should trigger a retry.
	// If nil, all errors are considered retryable.
	RetryableErrors func(error) bool

	// OnRetry, when set, is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns a retry configuration that retries every error.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
		RetryableErrors: func(err error) bool {
			return true
		},
	}
}

// RegistryRetryConfig is used around trigger registry and permission ledger calls.
// Only transient failures (throttling, timeouts, unavailable backends) are retried.
func RegistryRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		BackoffFactor:   2.0,
		JitterFactor:    0.2,
		RetryableErrors: errors.IsTransient,
	}
}

// RetryWithBackoff executes fn up to MaxAttempts times with exponentially
// increasing delays between attempts.
//
// Returns nil on success, the original error if it is not retryable,
// a "retry cancelled" error if ctx ends while waiting, and a
// "max retries exceeded" error wrapping the last failure otherwise.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return err
		}

		if attempt == config.MaxAttempts {
			break
		}

		wait := withJitter(delay, config.JitterFactor)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	if lastErr == nil {
		return fmt.Errorf("max retries exceeded: no attempts made")
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func withJitter(delay time.Duration, factor float64) time.Duration {
	if factor <= 0 || delay <= 0 {
		return delay
	}
	jitter := int64(float64(delay) * factor)
	if jitter <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Int64N(jitter))
}
