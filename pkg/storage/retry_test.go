package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		JitterFraction:    0.1,
	}
}

func TestRetryWithBackoff_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), func() error {
		calls++
		return errors.New("database is locked")
	})
	assert.EqualError(t, err, "database is locked")
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("no such row")
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(5), func() error {
		calls++
		return permanent(sentinel)
	})
	assert.Same(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := fastRetry(5)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	err := retryWithBackoff(ctx, cfg, func() error { return errors.New("database is locked") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{errors.New("SQLITE_BUSY: database table is locked"), true},
		{errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), true},
		{errors.New("could not serialize access due to concurrent update"), true},
		{errors.New("UNIQUE constraint failed"), false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableError(tt.err), "%v", tt.err)
	}
}
