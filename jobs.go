// Package jobs launches detached worker processes for a desktop data
// workbench and keeps the records they leave behind consistent.
//
// The application records a job, starts the worker that performs it, and
// returns immediately. Workers report progress by writing job_tasks rows
// into the shared database; callers poll JobProgress to observe them.
//
// Basic usage:
//
//	db, _ := storage.Open(storage.OpenConfig{Path: "workbench.db"})
//	store := storage.NewGormStorage(db)
//	store.Migrate(ctx)
//
//	dir, _ := datadir.Open("data")
//	l := launcher.New(launcher.Config{WorkerDir: "bin", DataDir: dir.Root(), DatabasePath: "workbench.db"})
//	o := jobs.New(store, layout.New(db), cascade.New(db, dir), jobs.WithLauncher(l))
//
//	id, ok, err := o.LaunchPreprocess(ctx, &jobs.PreprocessParameters{DataSetID: "raw-1"})
//	if err == nil && !ok {
//	    // the job row exists but processing could not start
//	}
//	progress, _ := o.JobProgress(ctx, id)
package jobs

import (
	"github.com/jdziat/workbench-jobs/pkg/core"
)

// Type aliases for the domain model.
type (
	// Job is a unit of requested external work.
	Job = core.Job

	// JobType is the kind of work a job performs.
	JobType = core.JobType

	// JobTask is one progress record written by a worker.
	JobTask = core.JobTask

	// JobResult references a file produced by a job.
	JobResult = core.JobResult

	// JobFilter selects and paginates jobs.
	JobFilter = core.JobFilter

	// JobProgressView is a job together with its reported tasks.
	JobProgressView = core.JobProgress

	// State is the explicit progress state of a job or task.
	State = core.State

	// Parameters is a typed worker payload.
	Parameters = core.Parameters

	PreprocessParameters = core.PreprocessParameters
	PreprocessStep       = core.PreprocessStep
	ModelBuildParameters = core.ModelBuildParameters
	EvaluateParameters   = core.EvaluateParameters
	ExportParameters     = core.ExportParameters

	// Workbook groups result sheets.
	Workbook = core.Workbook

	// ResultSheet holds ordered result views.
	ResultSheet = core.ResultSheet

	// ResultView is a positioned visualization on a sheet.
	ResultView = core.ResultView

	// Dataset is a row that owns one file in the data directory.
	Dataset = core.Dataset

	// DatasetKind names a dataset table.
	DatasetKind = core.DatasetKind

	// Event is the interface for all orchestration events.
	Event = core.Event

	// JobCreated is emitted when a job row is inserted.
	JobCreated = core.JobCreated

	// JobLaunched is emitted when a worker was started.
	JobLaunched = core.JobLaunched

	// LaunchFailed is emitted when a worker could not be started.
	LaunchFailed = core.LaunchFailed

	// JobDeleted is emitted after a cascade delete of a job.
	JobDeleted = core.JobDeleted
)

// Job types
const (
	TypePreprocess = core.TypePreprocess
	TypeML         = core.TypeML
	TypeExport     = core.TypeExport
	TypeResult     = core.TypeResult
)

// States
const (
	StatePending  = core.StatePending
	StateRunning  = core.StateRunning
	StateComplete = core.StateComplete
	StateError    = core.StateError
)

// Dataset kinds
const (
	DatasetRaw        = core.DatasetRaw
	DatasetNormalized = core.DatasetNormalized
	DatasetModel      = core.DatasetModel
)

// Error variables
var (
	ErrInvalidJobType     = core.ErrInvalidJobType
	ErrInvalidParameters  = core.ErrInvalidParameters
	ErrParametersTooLarge = core.ErrParametersTooLarge
	ErrInvalidDatasetKind = core.ErrInvalidDatasetKind
	ErrMissingWorkbookID  = core.ErrMissingWorkbookID
	ErrMissingSheetID     = core.ErrMissingSheetID
	ErrJobNotFound        = core.ErrJobNotFound
	ErrCorruptParameters  = core.ErrCorruptParameters
)
