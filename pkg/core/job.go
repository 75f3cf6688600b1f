// Package core provides the domain models and interfaces for the workbench jobs packages.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType is the closed set of work kinds a worker process can perform.
type JobType string

const (
	TypePreprocess JobType = "preprocess"
	TypeML         JobType = "ml"
	TypeExport     JobType = "export"
	TypeResult     JobType = "result"
)

// JobTypes lists every valid JobType.
var JobTypes = []JobType{TypePreprocess, TypeML, TypeExport, TypeResult}

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	switch t {
	case TypePreprocess, TypeML, TypeExport, TypeResult:
		return true
	}
	return false
}

// ParseJobType converts s into a JobType.
func ParseJobType(s string) (JobType, error) {
	t := JobType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobType, s)
	}
	return t, nil
}

// Job is a unit of requested external work.
//
// Parameters is persisted in the parameters TEXT column as JSON. It is
// encoded on create and decoded after every find; a stored value that
// fails to decode surfaces as a *CorruptParametersError.
type Job struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Type          JobType        `gorm:"index;size:20;not null" json:"type"`
	Status        string         `gorm:"size:32;not null" json:"status"`
	IsNamed       bool           `gorm:"not null;default:false" json:"is_named"`
	ProcessID     *int           `json:"process_id"`
	Parameters    map[string]any `gorm:"-" json:"parameters"`
	RawParameters string         `gorm:"column:parameters;type:text;not null" json:"-"`
	CreatedAt     time.Time      `gorm:"index;autoCreateTime" json:"created_at"`
}

// TableName pins the table name.
func (Job) TableName() string { return "jobs" }

// State returns the explicit state for the free-text status column.
func (j *Job) State() State {
	return ParseState(j.Status)
}

// Launched reports whether a worker process was recorded for the job.
func (j *Job) Launched() bool {
	return j.ProcessID != nil
}

// BeforeCreate assigns an ID and encodes Parameters.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Parameters == nil {
		j.RawParameters = "{}"
		return nil
	}
	raw, err := json.Marshal(j.Parameters)
	if err != nil {
		return fmt.Errorf("jobs: encode parameters: %w", err)
	}
	j.RawParameters = string(raw)
	return nil
}

// AfterFind decodes the stored parameters column.
func (j *Job) AfterFind(tx *gorm.DB) error {
	params, err := DecodeRawParameters(j.RawParameters)
	if err != nil {
		return &CorruptParametersError{JobID: j.ID, Err: err}
	}
	j.Parameters = params
	return nil
}

// DecodeRawParameters parses a stored parameters value. Only JSON objects
// are accepted. Numbers decode as json.Number so integers beyond 2^53
// survive a round trip.
func DecodeRawParameters(raw string) (map[string]any, error) {
	var params map[string]any
	if err := UnmarshalJSON([]byte(raw), &params); err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("parameters is not a JSON object")
	}
	return params, nil
}

// UnmarshalJSON decodes a single JSON value from raw into v, keeping
// numbers as json.Number. Trailing data after the value is an error.
func UnmarshalJSON(raw []byte, v any) error {
	return DecodeJSON(bytes.NewReader(raw), v)
}

// DecodeJSON is UnmarshalJSON over a reader.
func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// JobResult references an output artifact produced by a job.
type JobResult struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	JobID     string    `gorm:"index;size:36;not null" json:"job_id"`
	FilePath  *string   `gorm:"size:1024" json:"file_path,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName pins the table name.
func (JobResult) TableName() string { return "job_results" }

// BeforeCreate assigns an ID.
func (r *JobResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// JobFilter selects jobs for listing. Zero values mean "no filter".
type JobFilter struct {
	ID       string
	Type     JobType
	Page     int
	PageSize int
}

// Pagination defaults.
const (
	DefaultPage     = 1
	DefaultPageSize = 50
)

// Normalize fills in default page values.
func (f JobFilter) Normalize() JobFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	return f
}

// Offset returns (page-1) * pageSize for the normalized filter. A page too
// large to address saturates at math.MaxInt, which selects no rows.
func (f JobFilter) Offset() int {
	n := f.Normalize()
	if n.Page-1 > math.MaxInt/n.PageSize {
		return math.MaxInt
	}
	return (n.Page - 1) * n.PageSize
}

// JobProgress is the polling view of a job and the tasks its worker reported.
type JobProgress struct {
	Job      *Job       `json:"job"`
	Tasks    []*JobTask `json:"tasks"`
	State    State      `json:"state"`
	Progress *float64   `json:"progress,omitempty"`
}

// NewJobProgress derives the aggregate state from the job and its tasks
// (ordered oldest first). The latest task wins; with no tasks the job's own
// status column is used.
func NewJobProgress(job *Job, tasks []*JobTask) *JobProgress {
	p := &JobProgress{Job: job, Tasks: tasks, State: job.State()}
	if len(tasks) == 0 {
		return p
	}
	latest := tasks[len(tasks)-1]
	p.State = latest.State()
	if v, ok := latest.Progress(); ok {
		p.Progress = &v
	}
	for _, t := range tasks {
		if t.State() == StateError {
			p.State = StateError
			break
		}
	}
	return p
}
