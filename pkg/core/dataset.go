package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DatasetKind names a file-owning dataset table.
type DatasetKind string

const (
	DatasetRaw        DatasetKind = "raw"
	DatasetNormalized DatasetKind = "normalized"
	DatasetModel      DatasetKind = "model"
)

// DatasetKinds lists every valid DatasetKind.
var DatasetKinds = []DatasetKind{DatasetRaw, DatasetNormalized, DatasetModel}

// ParseDatasetKind converts s into a DatasetKind.
func ParseDatasetKind(s string) (DatasetKind, error) {
	k := DatasetKind(s)
	switch k {
	case DatasetRaw, DatasetNormalized, DatasetModel:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDatasetKind, s)
}

// Dataset is a row that owns exactly one file in the managed data directory.
type Dataset interface {
	Kind() DatasetKind
	RecordID() string
	OwnedFile() string
}

// NewDataset returns an empty model for kind, suitable as a gorm destination.
func NewDataset(kind DatasetKind) (Dataset, error) {
	switch kind {
	case DatasetRaw:
		return &RawDataSet{}, nil
	case DatasetNormalized:
		return &NormalizedDataSet{}, nil
	case DatasetModel:
		return &ModelFile{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidDatasetKind, kind)
}

// DataFile holds the file columns shared by every dataset table.
type DataFile struct {
	Name     string `gorm:"size:255" json:"name"`
	FileName string `gorm:"size:255" json:"file_name"`
	FilePath string `gorm:"size:1024" json:"file_path"`
}

// RawDataSet is an imported dataset.
type RawDataSet struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	DataFile  `gorm:"embedded"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (RawDataSet) TableName() string { return "raw_data_sets" }
func (*RawDataSet) Kind() DatasetKind { return DatasetRaw }
func (d *RawDataSet) RecordID() string { return d.ID }
func (d *RawDataSet) OwnedFile() string { return d.FilePath }

func (d *RawDataSet) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// NormalizedDataSet is the output of a preprocess job.
type NormalizedDataSet struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	RawDataSetID *string   `gorm:"index;size:36" json:"raw_data_set_id,omitempty"`
	JobID        *string   `gorm:"index;size:36" json:"job_id,omitempty"`
	DataFile     `gorm:"embedded"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (NormalizedDataSet) TableName() string { return "normalized_data_sets" }
func (*NormalizedDataSet) Kind() DatasetKind { return DatasetNormalized }
func (d *NormalizedDataSet) RecordID() string { return d.ID }
func (d *NormalizedDataSet) OwnedFile() string { return d.FilePath }

func (d *NormalizedDataSet) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// ModelFile is a trained model saved by an ml job.
type ModelFile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	JobID     *string   `gorm:"index;size:36" json:"job_id,omitempty"`
	DataFile  `gorm:"embedded"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ModelFile) TableName() string { return "model_files" }
func (*ModelFile) Kind() DatasetKind { return DatasetModel }
func (d *ModelFile) RecordID() string { return d.ID }
func (d *ModelFile) OwnedFile() string { return d.FilePath }

func (d *ModelFile) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{
		&Job{}, &JobTask{}, &JobResult{},
		&Workbook{}, &ResultSheet{}, &ResultView{},
		&RawDataSet{}, &NormalizedDataSet{}, &ModelFile{},
	}
}
