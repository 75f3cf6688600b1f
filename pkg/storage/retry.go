package storage

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds configuration for retry with backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 5
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	// Default: 50ms
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	// Default: 2s
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier applied to backoff after each attempt.
	// Default: 2.0
	BackoffMultiplier float64

	// JitterFraction is the fraction of backoff to randomize (0.0 to 1.0).
	// Default: 0.1 (10% jitter)
	JitterFraction float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// permanentError stops retryWithBackoff immediately.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

// retryWithBackoff executes the operation with exponential backoff on failure.
// It respects context cancellation and returns the last error if all attempts
// fail. Errors wrapped with permanent are returned unwrapped without retrying.
func retryWithBackoff(ctx context.Context, config RetryConfig, operation func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		jitter := time.Duration(float64(backoff) * config.JitterFraction * (rand.Float64()*2 - 1))
		sleepDuration := backoff + jitter
		if sleepDuration < 0 {
			sleepDuration = backoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepDuration):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}

// IsRetryableError reports whether err looks like lock contention with
// another writer. Worker processes write to the same database, so a busy
// or locked database is expected and transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"database is locked", "database table is locked", "sqlite_busy", "deadlock", "could not serialize"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
