package core

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Workbook groups result sheets.
type Workbook struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Workbook) TableName() string { return "workbooks" }

func (w *Workbook) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}

// ResultSheet holds an ordered set of result views.
type ResultSheet struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	WorkbookID string    `gorm:"index;size:36;not null" json:"workbook_id"`
	Name       string    `gorm:"size:255" json:"name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ResultSheet) TableName() string { return "result_sheets" }

func (s *ResultSheet) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// ResultView is a positioned visualization on a sheet. For a fixed sheet,
// LayoutIndex values form the contiguous range 1..N after every mutation.
// The column is nullable so rows written by older clients can still be
// ordered deterministically.
type ResultView struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	SheetID         string         `gorm:"index;size:36;not null" json:"sheet_id"`
	DataSetResultID *string        `gorm:"size:36" json:"data_set_result_id,omitempty"`
	Title           string         `gorm:"size:255" json:"title"`
	Style           string         `gorm:"size:64" json:"style"`
	Unit            string         `gorm:"size:64" json:"unit"`
	Parameters      datatypes.JSON `json:"parameters,omitempty"`
	LayoutIndex     *int           `gorm:"index" json:"layoutIndex"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (ResultView) TableName() string { return "result_views" }

func (v *ResultView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

// Index returns the layout index, or 0 when unset.
func (v *ResultView) Index() int {
	if v.LayoutIndex == nil {
		return 0
	}
	return *v.LayoutIndex
}
