// Package cascade removes rows together with their dependents and the files
// they own in the managed data directory.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/workbench-jobs/pkg/core"
	"github.com/jdziat/workbench-jobs/pkg/datadir"
)

// Deleter performs cascading deletes. Rows are removed inside one
// transaction; file removal is best effort and never fails the delete.
type Deleter struct {
	db     *gorm.DB
	dir    *datadir.Dir
	logger *zap.Logger
}

// Option configures a Deleter.
type Option func(*Deleter)

// WithLogger sets the deleter's logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Deleter) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Deleter. dir may be nil, in which case no files are touched.
func New(db *gorm.DB, dir *datadir.Dir, opts ...Option) *Deleter {
	d := &Deleter{db: db, dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DeleteJob removes a job, its tasks, its results, and every file the
// results reference. Deleting a job that does not exist succeeds.
func (d *Deleter) DeleteJob(ctx context.Context, jobID string) error {
	if jobID == "" {
		return core.ErrMissingJobID
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() != "sqlite" {
			// Blocks worker reports that hold a share lock on the job row.
			var ids []string
			err := tx.Model(&core.Job{}).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", jobID).
				Pluck("id", &ids).Error
			if err != nil {
				return err
			}
		}

		var results []*core.JobResult
		if err := tx.Where("job_id = ?", jobID).Find(&results).Error; err != nil {
			return err
		}
		for _, r := range results {
			if r.FilePath != nil {
				d.removeFile(*r.FilePath, zap.String("job_id", jobID), zap.String("result_id", r.ID))
			}
		}

		if err := tx.Where("job_id = ?", jobID).Delete(&core.JobResult{}).Error; err != nil {
			return fmt.Errorf("cascade: delete results of job %s: %w", jobID, err)
		}
		if err := tx.Where("job_id = ?", jobID).Delete(&core.JobTask{}).Error; err != nil {
			return fmt.Errorf("cascade: delete tasks of job %s: %w", jobID, err)
		}
		if err := tx.Where("id = ?", jobID).Delete(&core.Job{}).Error; err != nil {
			return fmt.Errorf("cascade: delete job %s: %w", jobID, err)
		}
		return nil
	})
}

// DeleteDataset removes one dataset row and its backing file, returning the
// deleted row. It returns nil, nil when the id did not exist. The file is
// only removed when a row was actually deleted.
func (d *Deleter) DeleteDataset(ctx context.Context, kind core.DatasetKind, id string) (core.Dataset, error) {
	ds, err := core.NewDataset(kind)
	if err != nil {
		return nil, err
	}
	var deleted bool
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(ds, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(ds)
		if result.Error != nil {
			return fmt.Errorf("cascade: delete %s dataset %s: %w", kind, id, result.Error)
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, nil
	}
	if ds.OwnedFile() != "" {
		d.removeFile(ds.OwnedFile(), zap.String("dataset_kind", string(kind)), zap.String("dataset_id", id))
	}
	return ds, nil
}

// DeleteWorkbook removes a workbook, all of its sheets, and all views on
// those sheets.
func (d *Deleter) DeleteWorkbook(ctx context.Context, workbookID string) error {
	if workbookID == "" {
		return core.ErrMissingWorkbookID
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheets := tx.Model(&core.ResultSheet{}).Select("id").Where("workbook_id = ?", workbookID)
		if err := tx.Where("sheet_id IN (?)", sheets).Delete(&core.ResultView{}).Error; err != nil {
			return fmt.Errorf("cascade: delete views of workbook %s: %w", workbookID, err)
		}
		if err := tx.Where("workbook_id = ?", workbookID).Delete(&core.ResultSheet{}).Error; err != nil {
			return fmt.Errorf("cascade: delete sheets of workbook %s: %w", workbookID, err)
		}
		if err := tx.Where("id = ?", workbookID).Delete(&core.Workbook{}).Error; err != nil {
			return fmt.Errorf("cascade: delete workbook %s: %w", workbookID, err)
		}
		return nil
	})
}

// DeleteResultSheet removes a sheet and all of its views.
func (d *Deleter) DeleteResultSheet(ctx context.Context, sheetID string) error {
	if sheetID == "" {
		return core.ErrMissingSheetID
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sheet_id = ?", sheetID).Delete(&core.ResultView{}).Error; err != nil {
			return fmt.Errorf("cascade: delete views of sheet %s: %w", sheetID, err)
		}
		if err := tx.Where("id = ?", sheetID).Delete(&core.ResultSheet{}).Error; err != nil {
			return fmt.Errorf("cascade: delete sheet %s: %w", sheetID, err)
		}
		return nil
	})
}

func (d *Deleter) removeFile(stored string, fields ...zap.Field) {
	if d.dir == nil || stored == "" {
		return
	}
	fields = append(fields, zap.String("file_path", stored))
	removed, err := d.dir.Remove(stored)
	switch {
	case errors.Is(err, core.ErrPathOutsideDataDir):
		d.logger.Warn("refusing to remove file outside data directory", fields...)
	case err != nil:
		d.logger.Warn("failed to remove file", append(fields, zap.Error(err))...)
	case removed:
		d.logger.Debug("removed file", fields...)
	}
}
