package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jdziat/workbench-jobs/internal/testdb"
	"github.com/jdziat/workbench-jobs/pkg/core"
)

// newTestStorage returns a storage over a fresh, migrated database with a
// short retry budget.
func newTestStorage(t *testing.T) *GormStorage {
	t.Helper()
	return NewGormStorage(testdb.Open(t), WithRetry(RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}))
}

// insertJob creates a job with a fixed creation time.
func insertJob(t *testing.T, s *GormStorage, jobType core.JobType, params map[string]any, at time.Time) *core.Job {
	t.Helper()
	job := &core.Job{Type: jobType, Parameters: params, CreatedAt: at}
	require.NoError(t, s.DB().WithContext(context.Background()).Create(job).Error)
	return job
}

func strPtr(s string) *string { return &s }
