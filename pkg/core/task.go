package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// State is the explicit progress state of a job or task.
type State int

const (
	StatePending State = iota
	StateRunning
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "pending"
	}
}

// Wire returns the string stored in status columns. Pending is the empty string.
func (s State) Wire() string {
	if s == StatePending {
		return ""
	}
	return s.String()
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts any string ParseState understands.
func (s *State) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = ParseState(v)
	return nil
}

// ParseState maps a stored status string to a State. The empty string is
// pending; unrecognized non-empty values are treated as running because
// workers write free-form stage names while they work.
func ParseState(s string) State {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending":
		return StatePending
	case "complete", "completed", "done", "finished", "success":
		return StateComplete
	case "error", "failed", "failure":
		return StateError
	default:
		return StateRunning
	}
}

// ParseProgress parses a progress_percent value. Empty or unparsable values
// report ok=false; parsed values are clamped to [0, 100].
func ParseProgress(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	switch {
	case v < 0:
		v = 0
	case v > 100:
		v = 100
	}
	return v, true
}

// FormatProgress renders a progress value in the stored string form.
func FormatProgress(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JobTask is one progress record reported by a worker.
type JobTask struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	JobID           string         `gorm:"index;size:36;not null" json:"job_id"`
	ProgressPercent string         `gorm:"size:16" json:"progress_percent"`
	PreprocessType  *string        `gorm:"size:64" json:"preprocess_type,omitempty"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	ErrorCode       *string        `gorm:"size:64" json:"error_code,omitempty"`
	Result          datatypes.JSON `json:"result,omitempty"`
	CreatedAt       time.Time      `gorm:"index;autoCreateTime" json:"created_at"`
}

// TableName pins the table name.
func (JobTask) TableName() string { return "job_tasks" }

// BeforeCreate assigns an ID.
func (t *JobTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// BeforeSave rejects a failed task without a finish time.
func (t *JobTask) BeforeSave(tx *gorm.DB) error {
	if t.ErrorCode != nil && t.FinishedAt == nil {
		return fmt.Errorf("%w: task %s has error_code without finished_at", ErrInvalidTaskState, t.ID)
	}
	return nil
}

// State derives the task state: an error code wins, then a finish time,
// then a known progress value.
func (t *JobTask) State() State {
	switch {
	case t.ErrorCode != nil:
		return StateError
	case t.FinishedAt != nil:
		return StateComplete
	}
	if _, ok := t.Progress(); ok {
		return StateRunning
	}
	return StatePending
}

// Progress returns the parsed progress percentage.
func (t *JobTask) Progress() (float64, bool) {
	return ParseProgress(t.ProgressPercent)
}

// DecodeResult unmarshals the structured result payload into v.
// It reports false when the task carries no result.
func (t *JobTask) DecodeResult(v any) (bool, error) {
	if len(t.Result) == 0 || string(t.Result) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(t.Result, v); err != nil {
		return false, fmt.Errorf("jobs: decode task result: %w", err)
	}
	return true, nil
}

// PreprocessResult is the result payload written by the normalization worker.
type PreprocessResult struct {
	NormalizedDataSetID string   `json:"normalized_data_set_id,omitempty"`
	FilePath            string   `json:"file_path,omitempty"`
	Rows                int      `json:"rows"`
	Columns             []string `json:"columns,omitempty"`
}

// ModelBuildResult is the result payload written by the model-build worker.
type ModelBuildResult struct {
	ModelFileID string             `json:"model_file_id,omitempty"`
	FilePath    string             `json:"file_path,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}
