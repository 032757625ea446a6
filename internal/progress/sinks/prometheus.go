package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/matchwatch/internal/progress"
)

// PrometheusSink exports job lifecycle metrics.
type PrometheusSink struct {
	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobsRunning  prometheus.Gauge
	jobRuntime   *prometheus.HistogramVec
	progressSeen prometheus.Counter
	lastProgress *prometheus.GaugeVec

	mu      sync.Mutex
	running map[string]struct{}
}

// NewPrometheusSink registers the collectors against reg (the default
// registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchwatch_jobs_started_total",
			Help: "Total jobs the registry started tracking.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchwatch_jobs_finished_total",
			Help: "Total tracked jobs finished, partitioned by kind and result.",
		}, []string{"kind", "result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchwatch_jobs_running",
			Help: "Tracked jobs that have not settled yet.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchwatch_job_runtime_seconds",
			Help:    "Time from tracking start to settlement.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"kind", "result"}),
		progressSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchwatch_job_progress_events_total",
			Help: "Non-terminal job snapshots observed.",
		}),
		lastProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchwatch_job_last_progress",
			Help: "Most recent progress value reported per job kind.",
		}, []string{"kind"}),
		running: make(map[string]struct{}),
	}
	for _, c := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsFinished,
		s.jobsRunning,
		s.jobRuntime,
		s.progressSeen,
		s.lastProgress,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register job collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageJobStarted:
			s.jobsStarted.Inc()
			if s.markRunning(evt.JobID) {
				s.jobsRunning.Inc()
			}
		case progress.StageJobProgress:
			s.progressSeen.Inc()
			s.lastProgress.WithLabelValues(kindLabel(evt)).Set(evt.Progress)
		case progress.StageJobCompleted, progress.StageJobFailed:
			result := "completed"
			if evt.Stage == progress.StageJobFailed {
				result = "failed"
			}
			s.jobsFinished.WithLabelValues(kindLabel(evt), result).Inc()
			if evt.Dur > 0 {
				s.jobRuntime.WithLabelValues(kindLabel(evt), result).Observe(evt.Dur.Seconds())
			}
			if s.markDone(evt.JobID) {
				s.jobsRunning.Dec()
			}
		}
	}
	return nil
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func (s *PrometheusSink) markRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[id]; ok {
		return false
	}
	s.running[id] = struct{}{}
	return true
}

func (s *PrometheusSink) markDone(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[id]; !ok {
		return false
	}
	delete(s.running, id)
	return true
}

func kindLabel(evt progress.Event) string {
	if evt.Kind == "" {
		return "unknown"
	}
	return string(evt.Kind)
}
