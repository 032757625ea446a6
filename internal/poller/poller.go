// Package poller observes a single backend job until it reaches a terminal
// state. Each Track call owns its own timer and shares nothing with other
// calls, so any number of jobs can be tracked concurrently.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/metrics"
)

// DefaultInterval is the delay between status queries when none is given.
const DefaultInterval = 2000 * time.Millisecond

// FallbackFailureMessage is reported for failed jobs that carry no error text.
const FallbackFailureMessage = "job failed without an error message"

var (
	// ErrJobFailed matches errors returned for jobs that ended in the failed state.
	ErrJobFailed = errors.New("job failed")
	// ErrTransport matches errors caused by the status query itself.
	ErrTransport = errors.New("job status query failed")
	// ErrProtocol matches errors caused by a malformed status snapshot.
	ErrProtocol = errors.New("job status protocol violation")
	// ErrTimeout matches errors returned when Config.Timeout elapses.
	ErrTimeout = errors.New("job tracking timed out")
)

// ProgressFunc receives every non-terminal snapshot in the order observed.
type ProgressFunc = func(job dashboard.Job)

// JobError is returned when the backend reports the job as failed. It
// unwraps to ErrJobFailed.
type JobError struct {
	Job dashboard.Job
}

// Message returns the job's failure text or the fallback message.
func (e *JobError) Message() string {
	if e.Job.Error != "" {
		return e.Job.Error
	}
	return FallbackFailureMessage
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.Job.ID, e.Message())
}

func (e *JobError) Unwrap() error {
	return ErrJobFailed
}

// Config tunes a Poller.
type Config struct {
	// Interval applies when Track is called with a non-positive interval.
	Interval time.Duration
	// Timeout abandons tracking client-side after this long. Zero polls
	// until the job settles.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Poller issues status queries against a JobSource.
type Poller struct {
	source   dashboard.JobSource
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// New constructs a Poller for source.
func New(source dashboard.JobSource, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:   source,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Track polls jobID until it completes or fails and returns the terminal
// snapshot. The first query is sent immediately and each later query waits
// interval after the previous response; queries never overlap.
//
// onProgress (optional) sees pending and running snapshots only, and is never
// called once Track has returned. A job that is already terminal on the first
// query returns without calling it.
//
// Errors wrap ErrJobFailed (via *JobError), ErrTransport, ErrProtocol,
// ErrTimeout, or the context's error. Responses the source reports as
// dashboard.ErrMalformedResponse count as protocol violations. Neither
// transport nor protocol errors are retried.
func (p *Poller) Track(
	ctx context.Context,
	jobID string,
	onProgress ProgressFunc,
	interval time.Duration,
) (dashboard.Job, error) {
	if interval <= 0 {
		interval = p.interval
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, p.timeout, ErrTimeout)
		defer cancel()
	}
	logger := p.logger.With(zap.String("job_id", jobID))

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return dashboard.Job{ID: jobID}, stopped(ctx, jobID)
		}

		job, err := p.source.GetJob(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return dashboard.Job{ID: jobID}, stopped(ctx, jobID)
			}
			if errors.Is(err, dashboard.ErrMalformedResponse) {
				metrics.ObservePoll("protocol_error")
				logger.Warn("job status response rejected", zap.Int("attempt", attempt), zap.Error(err))
				return dashboard.Job{ID: jobID}, fmt.Errorf("%w: job %s: %w", ErrProtocol, jobID, err)
			}
			metrics.ObservePoll("transport_error")
			logger.Warn("job status query failed", zap.Int("attempt", attempt), zap.Error(err))
			return dashboard.Job{ID: jobID}, fmt.Errorf("%w: job %s: %w", ErrTransport, jobID, err)
		}
		job, err = checkSnapshot(jobID, job)
		if err != nil {
			metrics.ObservePoll("protocol_error")
			logger.Warn("job status snapshot rejected", zap.Int("attempt", attempt), zap.Error(err))
			return job, err
		}
		metrics.ObservePoll(string(job.Status))

		switch job.Status {
		case dashboard.JobStatusCompleted:
			logger.Debug("job completed", zap.Int("polls", attempt))
			return job, nil
		case dashboard.JobStatusFailed:
			jobErr := &JobError{Job: job}
			logger.Debug("job failed", zap.Int("polls", attempt), zap.String("reason", jobErr.Message()))
			return job, jobErr
		}

		logger.Debug("job in progress",
			zap.String("status", string(job.Status)),
			zap.Float64("progress", job.Progress),
		)
		if onProgress != nil {
			onProgress(job)
		}

		if timer == nil {
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}
		select {
		case <-ctx.Done():
			return job, stopped(ctx, jobID)
		case <-timer.C:
		}
	}
}

func checkSnapshot(jobID string, job dashboard.Job) (dashboard.Job, error) {
	if job.ID == "" {
		job.ID = jobID
	}
	if job.ID != jobID {
		return job, fmt.Errorf("%w: asked for job %s, got snapshot for %s", ErrProtocol, jobID, job.ID)
	}
	if !job.Status.Valid() {
		return job, fmt.Errorf("%w: job %s has unknown status %q", ErrProtocol, jobID, job.Status)
	}
	return job, nil
}

func stopped(ctx context.Context, jobID string) error {
	if errors.Is(context.Cause(ctx), ErrTimeout) {
		return fmt.Errorf("%w: job %s", ErrTimeout, jobID)
	}
	return fmt.Errorf("tracking job %s: %w", jobID, ctx.Err())
}
