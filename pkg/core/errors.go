package core

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrInvalidJobType     = errors.New("jobs: invalid job type")
	ErrInvalidParameters  = errors.New("jobs: invalid parameters")
	ErrParametersTooLarge = errors.New("jobs: parameters exceed size limit")
	ErrInvalidDatasetKind = errors.New("jobs: invalid dataset kind")
	ErrInvalidTaskState   = errors.New("jobs: invalid task state")
	ErrMissingWorkbookID  = errors.New("jobs: workbook id is required")
	ErrMissingSheetID     = errors.New("jobs: sheet id is required")
	ErrMissingJobID       = errors.New("jobs: job id is required")
)

// Store errors
var (
	ErrJobNotFound        = errors.New("jobs: job not found")
	ErrCorruptParameters  = errors.New("jobs: stored parameters are corrupt")
	ErrPathOutsideDataDir = errors.New("jobs: path escapes the managed data directory")
)

// CorruptParametersError reports a job row whose parameters column does not
// decode as a JSON object. It matches ErrCorruptParameters with errors.Is.
type CorruptParametersError struct {
	JobID string
	Err   error
}

func (e *CorruptParametersError) Error() string {
	return fmt.Sprintf("jobs: stored parameters for job %s are corrupt: %v", e.JobID, e.Err)
}

func (e *CorruptParametersError) Unwrap() error {
	return e.Err
}

func (e *CorruptParametersError) Is(target error) bool {
	return target == ErrCorruptParameters
}
