package sinks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/progress"
	"github.com/JakeFAU/matchwatch/internal/publisher/memory"
)

func TestPublisherSinkPublishesSettledJobs(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink := NewPublisherSink(pub, "job-settled", nil)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	running := dashboard.Job{ID: "j-1", Kind: dashboard.JobKindFetchArticles, Status: dashboard.JobStatusRunning}
	done := running
	done.Status = dashboard.JobStatusCompleted
	done.Result = &dashboard.JobResult{TotalFetched: 80}

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{JobID: "j-1", Stage: progress.StageJobStarted, TS: now},
		progress.FromJob(running, now, 0),
		progress.FromJob(done, now.Add(30*time.Second), 30*time.Second),
	}))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "job-settled", msgs[0].Topic)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	require.Equal(t, "j-1", body["job_id"])
	require.Equal(t, "completed", body["status"])
	require.InDelta(t, 30.0, body["duration_seconds"], 1e-9)
	require.Equal(t, map[string]any{"totalFetched": 80.0}, body["result"])
}

func TestPublisherSinkDerivesStatusFromStage(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink := NewPublisherSink(pub, "", nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{JobID: "j-9", Stage: progress.StageJobFailed, TS: time.Now(), Note: "context deadline exceeded"},
	}))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	msg, ok := msgs[0].Payload.(JobSettledMessage)
	require.True(t, ok)
	require.Equal(t, dashboard.JobStatusFailed, msg.Status)
	require.Equal(t, "context deadline exceeded", msg.Error)
}
