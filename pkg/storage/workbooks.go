package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

// CreateWorkbook inserts a workbook.
func (s *GormStorage) CreateWorkbook(ctx context.Context, wb *core.Workbook) error {
	return s.db.WithContext(ctx).Create(wb).Error
}

// CreateSheet inserts a result sheet owned by a workbook.
func (s *GormStorage) CreateSheet(ctx context.Context, sheet *core.ResultSheet) error {
	if sheet.WorkbookID == "" {
		return core.ErrMissingWorkbookID
	}
	return s.db.WithContext(ctx).Create(sheet).Error
}

// GetSheet retrieves a sheet by ID. It returns nil, nil when absent.
func (s *GormStorage) GetSheet(ctx context.Context, id string) (*core.ResultSheet, error) {
	var sheet core.ResultSheet
	err := s.db.WithContext(ctx).First(&sheet, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

// ListSheets returns the sheets of a workbook.
func (s *GormStorage) ListSheets(ctx context.Context, workbookID string) ([]*core.ResultSheet, error) {
	var sheets []*core.ResultSheet
	err := s.db.WithContext(ctx).
		Where("workbook_id = ?", workbookID).
		Order("created_at ASC").
		Find(&sheets).Error
	return sheets, err
}

// ListViews returns the views of a sheet in layout order.
func (s *GormStorage) ListViews(ctx context.Context, sheetID string) ([]*core.ResultView, error) {
	var views []*core.ResultView
	err := s.db.WithContext(ctx).
		Where("sheet_id = ?", sheetID).
		Order("layout_index ASC").
		Order("id ASC").
		Find(&views).Error
	return views, err
}
