package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/progress"
)

// JobSettledMessage is the notification body published when a tracked job
// reaches a terminal state.
type JobSettledMessage struct {
	JobID       string               `json:"job_id"`
	Kind        dashboard.JobKind    `json:"kind,omitempty"`
	Status      dashboard.JobStatus  `json:"status"`
	Error       string               `json:"error,omitempty"`
	Result      *dashboard.JobResult `json:"result,omitempty"`
	SettledAt   time.Time            `json:"settled_at"`
	DurationSec float64              `json:"duration_seconds"`
}

// PublisherSink publishes one message per settled job.
type PublisherSink struct {
	pub    dashboard.Publisher
	topic  string
	logger *zap.Logger
}

// NewPublisherSink builds a sink that publishes to topic. An empty topic uses
// the publisher's default.
func NewPublisherSink(pub dashboard.Publisher, topic string, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{pub: pub, topic: topic, logger: logger}
}

// Consume publishes terminal events and ignores the rest.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	for _, evt := range batch {
		if !evt.Stage.Terminal() {
			continue
		}
		msg := JobSettledMessage{
			JobID:       evt.JobID,
			Kind:        evt.Kind,
			Status:      evt.Job.Status,
			Error:       evt.Note,
			Result:      evt.Job.Result,
			SettledAt:   evt.TS.UTC(),
			DurationSec: evt.Dur.Seconds(),
		}
		if msg.Status == "" {
			msg.Status = dashboard.JobStatusCompleted
			if evt.Stage == progress.StageJobFailed {
				msg.Status = dashboard.JobStatusFailed
			}
		}
		id, err := s.pub.Publish(ctx, s.topic, msg)
		if err != nil {
			return fmt.Errorf("publish settled job %s: %w", evt.JobID, err)
		}
		s.logger.Debug("settled job published", zap.String("job_id", evt.JobID), zap.String("message_id", id))
	}
	return nil
}

// Close implements progress.Sink.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
