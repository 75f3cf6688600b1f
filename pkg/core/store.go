package core

import (
	"context"
)

// JobStore is the persistence contract the orchestration facade depends on.
type JobStore interface {
	// Jobs
	CreateJob(ctx context.Context, jobType JobType, params map[string]any) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
	CountJobs(ctx context.Context, filter JobFilter) (int64, error)
	MarkNamed(ctx context.Context, id string) error
	SetProcessID(ctx context.Context, id string, pid int) error

	// Worker reports
	ListTasks(ctx context.Context, jobID string) ([]*JobTask, error)
}

// Launcher starts detached worker processes. Launch never returns an
// error: spawn failures are logged and reported as ok=false.
type Launcher interface {
	Launch(ctx context.Context, kind JobType, payload map[string]any) (pid int, ok bool)
}
