package http

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryConfig holds configuration for per-backend retry logic.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryConfig returns the stock retry configuration: three attempts
// per backend with a one second base doubling each attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Backoff calculates the wait before retry number attempt (0-based):
// min(initial * multiplier^attempt, maxBackoff).
func Backoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.Multiplier, float64(attempt))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// ShouldRetry determines if an error is transient.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var backendErr *Error
	if errors.As(err, &backendErr) {
		return backendErr.IsRetryable()
	}

	// Generic errors are not retryable.
	return false
}

// Operation is a function that can be retried.
type Operation func(ctx context.Context) error

// RetryWithBackoff executes an operation with exponential backoff. The wait
// between attempts selects on ctx.Done, so a caller deadline aborts an
// in-flight backoff instead of blocking for the full interval.
func RetryWithBackoff(ctx context.Context, operation Operation, config RetryConfig) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		// Permanent errors abandon this backend immediately.
		if !ShouldRetry(err) {
			return err
		}

		if attempt == config.MaxAttempts-1 {
			return err
		}

		select {
		case <-time.After(Backoff(attempt, config)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
