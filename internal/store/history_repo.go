package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("job run not found")

// RunStatus mirrors the job_runs status column.
type RunStatus string

// Job run statuses persisted in job_runs.status.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunRunning, RunCompleted, RunFailed:
		return true
	}
	return false
}

// JobRun models one row of job_runs.
type JobRun struct {
	JobID string `json:"job_id"`
	// Kind is empty when the job settled before its first snapshot was seen.
	Kind         dashboard.JobKind    `json:"kind,omitempty"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
	Status       RunStatus            `json:"status"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	Result       *dashboard.JobResult `json:"result,omitempty"`
}

// HistoryRepository persists the lifecycle of every tracked job.
type HistoryRepository interface {
	// UpsertJobStart records that tracking began. Repeated calls keep the
	// original start time.
	UpsertJobStart(ctx context.Context, jobID string, kind dashboard.JobKind, startedAt time.Time) error
	// CompleteJob stores the terminal outcome.
	CompleteJob(
		ctx context.Context,
		jobID string,
		finishedAt time.Time,
		status RunStatus,
		errMsg *string,
		result *dashboard.JobResult,
	) error
	// GetJob loads a single run or returns ErrNotFound.
	GetJob(ctx context.Context, jobID string) (JobRun, error)
	// ListJobs returns runs newest first, optionally filtered by status.
	ListJobs(ctx context.Context, status *RunStatus, limit, offset int) ([]JobRun, error)
}
