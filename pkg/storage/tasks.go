package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

// RecordTask inserts a progress record for a job. This is the write a
// worker process performs when it reports progress, completion, or failure.
// Reports for a job that no longer exists are rejected with ErrJobNotFound.
func (s *GormStorage) RecordTask(ctx context.Context, task *core.JobTask) error {
	if task.JobID == "" {
		return core.ErrMissingJobID
	}
	return s.insertForJob(ctx, task.JobID, task)
}

// ListTasks returns every task recorded for a job, oldest first.
func (s *GormStorage) ListTasks(ctx context.Context, jobID string) ([]*core.JobTask, error) {
	var tasks []*core.JobTask
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

// LatestTask returns the most recent task for a job, or nil when the job
// was never reported on.
func (s *GormStorage) LatestTask(ctx context.Context, jobID string) (*core.JobTask, error) {
	var task core.JobTask
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Order("id DESC").
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// AddResult records an output artifact for a job. Like RecordTask it is
// rejected once the job has been deleted.
func (s *GormStorage) AddResult(ctx context.Context, result *core.JobResult) error {
	if result.JobID == "" {
		return core.ErrMissingJobID
	}
	if err := s.insertForJob(ctx, result.JobID, result); err != nil {
		return fmt.Errorf("jobs: add result: %w", err)
	}
	return nil
}

// insertForJob creates row only if its owning job still exists, checked in
// the same transaction so a concurrent cascade delete cannot leave an
// orphaned row behind.
func (s *GormStorage) insertForJob(ctx context.Context, jobID string, row any) error {
	return retryWithBackoff(ctx, s.retry, func() error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			q := tx.Model(&core.Job{}).Where("id = ?", jobID)
			if !s.IsSQLite() {
				q = q.Clauses(clause.Locking{Strength: "SHARE"})
			}
			var ids []string
			if err := q.Limit(1).Pluck("id", &ids).Error; err != nil {
				return err
			}
			if len(ids) == 0 {
				return core.ErrJobNotFound
			}
			return tx.Create(row).Error
		})
		if err != nil && !IsRetryableError(err) {
			return permanent(err)
		}
		return err
	})
}

// ListResults returns the output artifacts recorded for a job.
func (s *GormStorage) ListResults(ctx context.Context, jobID string) ([]*core.JobResult, error) {
	var results []*core.JobResult
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&results).Error
	return results, err
}
