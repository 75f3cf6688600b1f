// Package storage provides the GORM-backed job store.
package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jdziat/workbench-jobs/pkg/core"
	"github.com/jdziat/workbench-jobs/pkg/security"
)

// GormStorage implements core.JobStore using GORM.
type GormStorage struct {
	db     *gorm.DB
	logger *zap.Logger
	retry  RetryConfig
}

// Option configures a GormStorage.
type Option func(*GormStorage)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *GormStorage) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRetry overrides the backoff used for writes that can contend with
// worker processes.
func WithRetry(cfg RetryConfig) Option {
	return func(s *GormStorage) {
		s.retry = cfg
	}
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB, opts ...Option) *GormStorage {
	s := &GormStorage{
		db:     db,
		logger: zap.NewNop(),
		retry:  DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying handle.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the handle uses the sqlite dialect.
func (s *GormStorage) IsSQLite() bool {
	return s.db != nil && s.db.Dialector != nil && s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(core.Models()...)
}

// CreateJob inserts a job row that has not been launched yet.
func (s *GormStorage) CreateJob(ctx context.Context, jobType core.JobType, params map[string]any) (*core.Job, error) {
	if err := security.ValidateJobType(jobType); err != nil {
		return nil, err
	}
	if err := security.ValidateParameters(params); err != nil {
		return nil, err
	}
	job := &core.Job{
		Type:       jobType,
		Status:     core.StatePending.Wire(),
		Parameters: params,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("jobs: create job: %w", err)
	}
	return job, nil
}

// GetJob retrieves a job by ID. It returns nil, nil when the job does not exist.
func (s *GormStorage) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns a page of jobs ordered by creation time, newest first.
func (s *GormStorage) ListJobs(ctx context.Context, filter core.JobFilter) ([]*core.Job, error) {
	jobs, _, err := s.SearchJobs(ctx, filter)
	return jobs, err
}

// SearchJobs returns a page of jobs matching the filter plus the total
// number of matching rows.
func (s *GormStorage) SearchJobs(ctx context.Context, filter core.JobFilter) ([]*core.Job, int64, error) {
	filter = filter.Normalize()
	q := s.filtered(ctx, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []*core.Job
	err := s.filtered(ctx, filter).
		Order("created_at DESC").
		Order("id DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// CountJobs returns the number of jobs matching the filter, ignoring pagination.
func (s *GormStorage) CountJobs(ctx context.Context, filter core.JobFilter) (int64, error) {
	var total int64
	err := s.filtered(ctx, filter).Count(&total).Error
	return total, err
}

func (s *GormStorage) filtered(ctx context.Context, filter core.JobFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&core.Job{})
	if filter.ID != "" {
		q = q.Where("id = ?", filter.ID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	return q
}

// MarkNamed records that the user saved an output produced by the job.
func (s *GormStorage) MarkNamed(ctx context.Context, id string) error {
	return s.updateJob(ctx, id, map[string]any{"is_named": true})
}

// SetProcessID records the OS process id of the launched worker.
func (s *GormStorage) SetProcessID(ctx context.Context, id string, pid int) error {
	return s.updateJob(ctx, id, map[string]any{"process_id": pid})
}

// SetStatus stores the wire form of state in the job's status column.
func (s *GormStorage) SetStatus(ctx context.Context, id string, state core.State) error {
	return s.updateJob(ctx, id, map[string]any{"status": state.Wire()})
}

// updateJob applies updates to one job, retrying transient failures such
// as a sqlite write lock held by a worker process.
func (s *GormStorage) updateJob(ctx context.Context, id string, updates map[string]any) error {
	return retryWithBackoff(ctx, s.retry, func() error {
		result := s.db.WithContext(ctx).
			Model(&core.Job{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			if !IsRetryableError(result.Error) {
				return permanent(result.Error)
			}
			s.logger.Debug("job update failed, retrying", zap.String("job_id", id), zap.Error(result.Error))
			return result.Error
		}
		if result.RowsAffected == 0 {
			return permanent(core.ErrJobNotFound)
		}
		return nil
	})
}
