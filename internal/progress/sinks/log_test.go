package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/matchwatch/internal/progress"
)

func TestLogSinkWritesOneEntryPerEvent(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	now := time.Now()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{JobID: "j-1", Stage: progress.StageJobStarted, TS: now},
		{JobID: "j-1", Stage: progress.StageJobFailed, TS: now, Note: "boom", Dur: time.Second},
	}))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	fields := entries[1].ContextMap()
	require.Equal(t, "j-1", fields["job_id"])
	require.Equal(t, "boom", fields["note"])
	require.Equal(t, time.Second, fields["dur"])
}
