package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	running := dashboard.Job{ID: "j-1", Kind: dashboard.JobKindCompareQuality, Status: dashboard.JobStatusRunning, Progress: 55}
	done := running
	done.Status = dashboard.JobStatusCompleted
	batch := []progress.Event{
		{JobID: "j-1", Stage: progress.StageJobStarted, TS: now},
		progress.FromJob(running, now.Add(time.Second), time.Second),
		progress.FromJob(done, now.Add(15*time.Second), 15*time.Second),
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsFinished.WithLabelValues("compare-quality", "completed")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsFinished.WithLabelValues("compare-quality", "failed")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.progressSeen))
	require.Equal(t, 55.0, testutil.ToFloat64(sink.lastProgress.WithLabelValues("compare-quality")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.jobRuntime))
}

func TestPrometheusSinkRunningGauge(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{JobID: "a", Stage: progress.StageJobStarted, TS: now},
		{JobID: "a", Stage: progress.StageJobStarted, TS: now},
		{JobID: "b", Stage: progress.StageJobStarted, TS: now},
	}))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.jobsRunning))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{JobID: "a", Stage: progress.StageJobFailed, TS: now, Note: "boom"},
		{JobID: "zzz", Stage: progress.StageJobCompleted, TS: now},
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsFinished.WithLabelValues("unknown", "failed")))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
