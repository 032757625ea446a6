// Package registry keeps the live, deduplicated set of jobs being tracked by
// one application session. Each job gets exactly one tracker goroutine; the
// settled snapshot stays visible for a grace period and is then evicted.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/metrics"
	"github.com/JakeFAU/matchwatch/internal/poller"
	"github.com/JakeFAU/matchwatch/internal/progress"
)

// DefaultGracePeriod is how long a settled job stays listed.
const DefaultGracePeriod = 3000 * time.Millisecond

// Tracker follows one job to a terminal state. *poller.Poller satisfies it.
type Tracker interface {
	Track(ctx context.Context, jobID string, onProgress func(dashboard.Job), interval time.Duration) (dashboard.Job, error)
}

// Observer is notified once per settled job with the terminal snapshot and
// the tracking error, if any.
type Observer func(job dashboard.Job, err error)

// Config tunes a Registry.
type Config struct {
	// Interval is passed to the tracker by Start. Zero defers to the tracker.
	Interval time.Duration
	// GracePeriod delays eviction of settled jobs.
	GracePeriod time.Duration
	Logger      *zap.Logger
	Now         func() time.Time
	// Events receives one event per observed snapshot when set.
	Events progress.Emitter
}

// TrackedJob is the registry's view of a job.
type TrackedJob struct {
	Job             dashboard.Job `json:"job"`
	AddedAt         time.Time     `json:"added_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	PendingEviction bool          `json:"pending_eviction"`
}

type entry struct {
	seq     uint64
	tracked TrackedJob
	evict   *time.Timer
}

type subscription struct {
	id uint64
	fn Observer
}

// Registry owns the live job map. It is safe for concurrent use.
type Registry struct {
	tracker Tracker
	cfg     Config
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	jobs      map[string]*entry
	seq       uint64
	observers []subscription
	nextObs   uint64
	closed    bool
}

// New constructs a Registry that tracks jobs with tracker.
func New(tracker Tracker, cfg Config) *Registry {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*entry),
	}
}

// Start begins tracking jobID with the configured interval. See StartWithInterval.
func (r *Registry) Start(jobID string) bool {
	return r.StartWithInterval(jobID, r.cfg.Interval)
}

// StartWithInterval begins tracking jobID and reports whether a new tracker
// was created. It is a no-op when jobID is already listed (including during
// its grace period), is empty, or the registry is closed. The job is listed
// as pending before the first status query returns.
func (r *Registry) StartWithInterval(jobID string, interval time.Duration) bool {
	if jobID == "" {
		return false
	}
	now := r.cfg.Now()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	if _, ok := r.jobs[jobID]; ok {
		r.mu.Unlock()
		return false
	}
	r.seq++
	e := &entry{
		seq: r.seq,
		tracked: TrackedJob{
			Job:       dashboard.Job{ID: jobID, Status: dashboard.JobStatusPending},
			AddedAt:   now,
			UpdatedAt: now,
		},
	}
	r.jobs[jobID] = e
	r.wg.Add(1)
	r.mu.Unlock()

	r.emit(progress.Event{JobID: jobID, Stage: progress.StageJobStarted, TS: now, Job: e.tracked.Job})
	r.logger.Info("tracking job", zap.String("job_id", jobID), zap.Duration("interval", interval))

	go r.run(e, jobID, interval)
	return true
}

func (r *Registry) run(e *entry, jobID string, interval time.Duration) {
	defer r.wg.Done()
	job, err := r.tracker.Track(r.ctx, jobID, func(j dashboard.Job) {
		r.update(e, j)
	}, interval)
	r.settle(e, jobID, job, err)
}

func (r *Registry) update(e *entry, job dashboard.Job) {
	now := r.cfg.Now()
	r.mu.Lock()
	if r.closed || e.tracked.PendingEviction {
		r.mu.Unlock()
		return
	}
	e.tracked.Job = job
	e.tracked.UpdatedAt = now
	r.mu.Unlock()

	r.emit(progress.FromJob(job, now, 0))
}

func (r *Registry) settle(e *entry, jobID string, job dashboard.Job, err error) {
	now := r.cfg.Now()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	job = terminalSnapshot(e.tracked.Job, job, err)
	e.tracked.Job = job
	e.tracked.UpdatedAt = now
	e.tracked.PendingEviction = true
	e.evict = time.AfterFunc(r.cfg.GracePeriod, func() {
		r.evict(jobID, e)
	})
	observers := append([]subscription(nil), r.observers...)
	addedAt := e.tracked.AddedAt
	r.mu.Unlock()

	metrics.ObserveSettled(string(job.Status))
	r.emit(progress.FromJob(job, now, now.Sub(addedAt)))
	if err != nil {
		r.logger.Warn("job settled with error", zap.String("job_id", jobID), zap.Error(err))
	} else {
		r.logger.Info("job completed", zap.String("job_id", jobID))
	}

	for _, sub := range observers {
		sub.fn(job, err)
	}
}

// terminalSnapshot returns the snapshot recorded for a settled job. Tracking
// errors that did not come from the job itself are recorded as a failed job
// carrying the error text.
func terminalSnapshot(last, job dashboard.Job, err error) dashboard.Job {
	if err == nil {
		return job
	}
	var jobErr *poller.JobError
	if errors.As(err, &jobErr) {
		job.Error = jobErr.Message()
		return job
	}
	failed := last
	if job.Kind != "" {
		failed.Kind = job.Kind
	}
	failed.Status = dashboard.JobStatusFailed
	failed.Result = nil
	failed.Error = err.Error()
	return failed
}

func (r *Registry) evict(jobID string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.jobs[jobID] != e {
		return
	}
	delete(r.jobs, jobID)
	r.logger.Debug("evicted settled job", zap.String("job_id", jobID))
}

func (r *Registry) emit(evt progress.Event) {
	if r.cfg.Events == nil {
		return
	}
	r.cfg.Events.Emit(evt)
}

// Subscribe registers fn to be called once for every job that settles after
// the call. Observers run on the settling tracker's goroutine in
// subscription order. The returned function removes the observer.
func (r *Registry) Subscribe(fn Observer) func() {
	if fn == nil {
		return func() {}
	}
	r.mu.Lock()
	r.nextObs++
	id := r.nextObs
	r.observers = append(r.observers, subscription{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, sub := range r.observers {
				if sub.id == id {
					r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// List returns the current job snapshots in the order they were started.
func (r *Registry) List() []dashboard.Job {
	tracked := r.Tracked()
	out := make([]dashboard.Job, len(tracked))
	for i, t := range tracked {
		out[i] = t.Job
	}
	return out
}

// Tracked returns copies of every listed job with registry metadata, in the
// order they were started.
func (r *Registry) Tracked() []TrackedJob {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]TrackedJob, len(entries))
	for i, e := range entries {
		out[i] = e.tracked
	}
	r.mu.Unlock()
	return out
}

// Get returns the listed entry for jobID.
func (r *Registry) Get(jobID string) (TrackedJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return TrackedJob{}, false
	}
	return e.tracked, true
}

// HasActive reports whether any listed job has not settled yet.
func (r *Registry) HasActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.jobs {
		if !e.tracked.PendingEviction {
			return true
		}
	}
	return false
}

// Close stops every tracker, cancels pending evictions, and waits for tracker
// goroutines to exit. Observers are not notified for jobs cut short by Close.
// Later calls only wait.
func (r *Registry) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		for id, e := range r.jobs {
			if e.evict != nil {
				e.evict.Stop()
			}
			delete(r.jobs, id)
		}
		r.observers = nil
	}
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job registry close wait: %w", ctx.Err())
	}
}
