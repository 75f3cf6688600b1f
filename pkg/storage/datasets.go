package storage

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

// CreateDataset inserts a dataset row of any kind.
func (s *GormStorage) CreateDataset(ctx context.Context, ds core.Dataset) error {
	return s.db.WithContext(ctx).Create(ds).Error
}

// GetDataset retrieves a dataset by kind and ID. It returns nil, nil when absent.
func (s *GormStorage) GetDataset(ctx context.Context, kind core.DatasetKind, id string) (core.Dataset, error) {
	ds, err := core.NewDataset(kind)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).First(ds, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// ReferencedFiles returns every non-empty file_path stored in a table that
// owns files in the managed data directory, plus the file_path carried in
// the result payload of any task whose job still exists.
func (s *GormStorage) ReferencedFiles(ctx context.Context) (map[string]struct{}, error) {
	refs := make(map[string]struct{})

	var resultPaths []string
	err := s.db.WithContext(ctx).
		Model(&core.JobResult{}).
		Where("file_path IS NOT NULL AND file_path <> ''").
		Pluck("file_path", &resultPaths).Error
	if err != nil {
		return nil, err
	}
	for _, p := range resultPaths {
		refs[p] = struct{}{}
	}

	taskPaths, err := s.taskResultFiles(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range taskPaths {
		refs[p] = struct{}{}
	}

	for _, kind := range core.DatasetKinds {
		model, _ := core.NewDataset(kind)
		var paths []string
		err := s.db.WithContext(ctx).
			Model(model).
			Where("file_path IS NOT NULL AND file_path <> ''").
			Pluck("file_path", &paths).Error
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			refs[p] = struct{}{}
		}
	}
	return refs, nil
}

// taskResultFiles collects result.file_path from the tasks of existing jobs.
// The payload is decoded in Go so the query stays portable across dialects.
func (s *GormStorage) taskResultFiles(ctx context.Context) ([]string, error) {
	var results []datatypes.JSON
	err := s.db.WithContext(ctx).
		Model(&core.JobTask{}).
		Joins("JOIN jobs ON jobs.id = job_tasks.job_id").
		Where("job_tasks.result IS NOT NULL").
		Pluck("job_tasks.result", &results).Error
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, raw := range results {
		var payload struct {
			FilePath string `json:"file_path"`
		}
		if len(raw) == 0 || json.Unmarshal(raw, &payload) != nil {
			continue
		}
		if payload.FilePath != "" {
			paths = append(paths, payload.FilePath)
		}
	}
	return paths, nil
}
