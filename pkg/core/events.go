package core

import "time"

// Event is the interface for all orchestration events.
type Event interface {
	eventMarker()
}

// JobCreated is emitted when a job row is inserted.
type JobCreated struct {
	Job       *Job
	Timestamp time.Time
}

func (*JobCreated) eventMarker() {}

// JobLaunched is emitted when a worker process was started for a job.
type JobLaunched struct {
	Job       *Job
	PID       int
	Timestamp time.Time
}

func (*JobLaunched) eventMarker() {}

// LaunchFailed is emitted when a worker process could not be started.
// The job row remains in its pre-launch state.
type LaunchFailed struct {
	Job       *Job
	Timestamp time.Time
}

func (*LaunchFailed) eventMarker() {}

// JobDeleted is emitted after a job and its dependents were removed.
type JobDeleted struct {
	JobID     string
	Timestamp time.Time
}

func (*JobDeleted) eventMarker() {}
