package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/workbench-jobs/pkg/cascade"
	"github.com/jdziat/workbench-jobs/pkg/core"
	"github.com/jdziat/workbench-jobs/pkg/launcher"
	"github.com/jdziat/workbench-jobs/pkg/layout"
)

// Orchestrator composes the job store, worker launcher, layout reconciler,
// and cascade deleter behind the operations the presentation layer calls.
type Orchestrator struct {
	store    core.JobStore
	launcher core.Launcher
	layout   *layout.Reconciler
	deleter  *cascade.Deleter
	logger   *zap.Logger

	mu   sync.RWMutex
	subs []chan Event
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLauncher sets the launcher used to start workers. Without one every
// launch reports false.
func WithLauncher(l core.Launcher) Option {
	return func(o *Orchestrator) {
		o.launcher = l
	}
}

// New creates an Orchestrator.
func New(store core.JobStore, reconciler *layout.Reconciler, deleter *cascade.Deleter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		layout:  reconciler,
		deleter: deleter,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateJob inserts a job row without launching it and returns its id.
func (o *Orchestrator) CreateJob(ctx context.Context, jobType JobType, params map[string]any) (string, error) {
	job, err := o.store.CreateJob(ctx, jobType, params)
	if err != nil {
		return "", err
	}
	o.emit(&JobCreated{Job: job, Timestamp: time.Now()})
	return job.ID, nil
}

// Launch records a job for p and starts its worker. The job id is returned
// whenever the row was created. ok is false when the worker could not be
// started; the row is kept in its pre-launch state so the failure can be
// shown to the user. err is only returned for invalid parameters or store
// failures before the launch was attempted.
func (o *Orchestrator) Launch(ctx context.Context, p Parameters) (jobID string, ok bool, err error) {
	if p == nil {
		return "", false, fmt.Errorf("%w: nil parameters", core.ErrInvalidParameters)
	}
	if err := p.Validate(); err != nil {
		return "", false, err
	}
	params, err := core.EncodeParameters(p)
	if err != nil {
		return "", false, err
	}

	kind := p.JobType()
	job, err := o.store.CreateJob(ctx, kind, params)
	if err != nil {
		return "", false, err
	}
	o.emit(&JobCreated{Job: job, Timestamp: time.Now()})

	log := o.logger.With(zap.String("job_id", job.ID), zap.String("job_type", string(kind)))

	if o.launcher == nil {
		log.Error("no launcher configured")
		o.emit(&LaunchFailed{Job: job, Timestamp: time.Now()})
		return job.ID, false, nil
	}

	payload := make(map[string]any, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	payload[launcher.KeyJobID] = job.ID

	pid, ok := o.launcher.Launch(ctx, kind, payload)
	if !ok {
		log.Warn("worker could not be started")
		o.emit(&LaunchFailed{Job: job, Timestamp: time.Now()})
		return job.ID, false, nil
	}

	if err := o.store.SetProcessID(ctx, job.ID, pid); err != nil {
		// The worker is already running; only the bookkeeping is missing.
		log.Warn("failed to record worker pid", zap.Int("pid", pid), zap.Error(err))
	} else {
		job.ProcessID = &pid
	}
	o.emit(&JobLaunched{Job: job, PID: pid, Timestamp: time.Now()})
	return job.ID, true, nil
}

// LaunchPreprocess starts a normalization worker.
func (o *Orchestrator) LaunchPreprocess(ctx context.Context, p *PreprocessParameters) (string, bool, error) {
	return o.Launch(ctx, p)
}

// LaunchModelBuild starts a model-build worker.
func (o *Orchestrator) LaunchModelBuild(ctx context.Context, p *ModelBuildParameters) (string, bool, error) {
	return o.Launch(ctx, p)
}

// LaunchEvaluate starts an evaluation worker.
func (o *Orchestrator) LaunchEvaluate(ctx context.Context, p *EvaluateParameters) (string, bool, error) {
	return o.Launch(ctx, p)
}

// LaunchExport starts an export worker.
func (o *Orchestrator) LaunchExport(ctx context.Context, p *ExportParameters) (string, bool, error) {
	return o.Launch(ctx, p)
}

// GetJob returns the job, or nil when it does not exist.
func (o *Orchestrator) GetJob(ctx context.Context, id string) (*Job, error) {
	return o.store.GetJob(ctx, id)
}

// ListJobs returns one page of jobs, newest first, and the number of jobs
// matching the filter across all pages.
func (o *Orchestrator) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, int64, error) {
	jobs, err := o.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := o.store.CountJobs(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// JobProgress returns the job with every task its worker has reported so
// far. Callers poll this; there is no completion callback.
func (o *Orchestrator) JobProgress(ctx context.Context, id string) (*JobProgressView, error) {
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, core.ErrJobNotFound
	}
	tasks, err := o.store.ListTasks(ctx, id)
	if err != nil {
		return nil, err
	}
	return core.NewJobProgress(job, tasks), nil
}

// MarkNamed records that the user saved an output of the job.
func (o *Orchestrator) MarkNamed(ctx context.Context, id string) error {
	return o.store.MarkNamed(ctx, id)
}

// DeleteJob removes the job with its tasks, results, and result files.
// A running worker is not stopped.
func (o *Orchestrator) DeleteJob(ctx context.Context, id string) error {
	if err := o.deleter.DeleteJob(ctx, id); err != nil {
		return err
	}
	o.emit(&JobDeleted{JobID: id, Timestamp: time.Now()})
	return nil
}

// AppendResultView adds view at the end of its sheet.
func (o *Orchestrator) AppendResultView(ctx context.Context, view *ResultView) error {
	return o.layout.AppendView(ctx, view)
}

// MoveResultView moves a view to the 0-based position layoutIndex among
// its siblings.
func (o *Orchestrator) MoveResultView(ctx context.Context, sheetID, viewID string, layoutIndex int) error {
	return o.layout.MoveView(ctx, sheetID, viewID, layoutIndex)
}

// DeleteResultView deletes a view and compacts the rest of its sheet.
func (o *Orchestrator) DeleteResultView(ctx context.Context, sheetID, viewID string) error {
	return o.layout.DeleteView(ctx, sheetID, viewID)
}

// DeleteResultSheet deletes a sheet and its views.
func (o *Orchestrator) DeleteResultSheet(ctx context.Context, sheetID string) error {
	return o.deleter.DeleteResultSheet(ctx, sheetID)
}

// DeleteWorkbook deletes a workbook, its sheets, and their views.
// An empty id is rejected with ErrMissingWorkbookID.
func (o *Orchestrator) DeleteWorkbook(ctx context.Context, workbookID string) error {
	return o.deleter.DeleteWorkbook(ctx, workbookID)
}

// DeleteDataset deletes a dataset row and its file, returning the deleted
// row or nil when it did not exist.
func (o *Orchestrator) DeleteDataset(ctx context.Context, kind DatasetKind, id string) (Dataset, error) {
	return o.deleter.DeleteDataset(ctx, kind, id)
}
