package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

// Stage denotes the lifecycle milestone represented by an Event.
type Stage string

// Supported lifecycle stages.
const (
	StageJobStarted   Stage = "JOB_STARTED"
	StageJobProgress  Stage = "JOB_PROGRESS"
	StageJobCompleted Stage = "JOB_COMPLETED"
	StageJobFailed    Stage = "JOB_FAILED"
)

// Terminal reports whether the stage ends a job's lifecycle.
func (s Stage) Terminal() bool {
	return s == StageJobCompleted || s == StageJobFailed
}

// Event captures one observation of a tracked job.
type Event struct {
	// JobID is the backend job identifier.
	JobID string
	// Kind is empty until the first snapshot arrives.
	Kind  dashboard.JobKind
	Stage Stage
	// TS is when the observation was made.
	TS time.Time
	// Progress is forwarded from the snapshot without clamping.
	Progress float64
	// Dur is the time since tracking began; set on terminal events.
	Dur time.Duration
	// Note holds the failure reason for JOB_FAILED.
	Note string
	// Job is the snapshot that produced the event (zero for JOB_STARTED).
	Job dashboard.Job
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStarted, StageJobProgress, StageJobCompleted, StageJobFailed:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// StageFor maps a job snapshot onto the event stage describing it.
func StageFor(job dashboard.Job) Stage {
	switch job.Status {
	case dashboard.JobStatusCompleted:
		return StageJobCompleted
	case dashboard.JobStatusFailed:
		return StageJobFailed
	default:
		return StageJobProgress
	}
}

// FromJob builds an event for the given snapshot.
func FromJob(job dashboard.Job, ts time.Time, dur time.Duration) Event {
	stage := StageFor(job)
	evt := Event{
		JobID:    job.ID,
		Kind:     job.Kind,
		Stage:    stage,
		TS:       ts,
		Progress: job.Progress,
		Job:      job,
	}
	if stage.Terminal() {
		evt.Dur = dur
	}
	if stage == StageJobFailed {
		evt.Note = job.Error
	}
	return evt
}
