package sinks

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/matchwatch/internal/progress"
	"github.com/JakeFAU/matchwatch/internal/store"
)

// StoreSink persists job lifecycle events via a store.HistoryRepository.
// The job kind is written once per job; later progress events for the same
// job do not touch the repository.
type StoreSink struct {
	repo   store.HistoryRepository
	logger *zap.Logger

	mu     sync.Mutex
	kinded map[string]struct{}
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.HistoryRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger, kinded: make(map[string]struct{})}
}

// Consume forwards lifecycle events to the repository in order. Repository
// errors are returned wrapped and stop the batch.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageJobStarted:
			if err := s.repo.UpsertJobStart(ctx, evt.JobID, evt.Kind, evt.TS); err != nil {
				return fmt.Errorf("upsert job start: %w", err)
			}
			if evt.Kind != "" {
				s.markKinded(evt.JobID)
			}
		case progress.StageJobProgress:
			// The kind is unknown at start; the first snapshot fills it in.
			if evt.Kind == "" || s.hasKind(evt.JobID) {
				continue
			}
			if err := s.repo.UpsertJobStart(ctx, evt.JobID, evt.Kind, evt.TS); err != nil {
				return fmt.Errorf("upsert job kind: %w", err)
			}
			s.markKinded(evt.JobID)
		case progress.StageJobCompleted:
			if err := s.complete(ctx, evt, store.RunCompleted, nil); err != nil {
				return err
			}
		case progress.StageJobFailed:
			note := evt.Note
			if err := s.complete(ctx, evt, store.RunFailed, &note); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *StoreSink) complete(ctx context.Context, evt progress.Event, status store.RunStatus, note *string) error {
	// A job that settled on its first query never produced a progress event.
	if evt.Kind != "" && !s.hasKind(evt.JobID) {
		if err := s.repo.UpsertJobStart(ctx, evt.JobID, evt.Kind, evt.TS.Add(-evt.Dur)); err != nil {
			return fmt.Errorf("upsert job kind: %w", err)
		}
	}
	if err := s.repo.CompleteJob(ctx, evt.JobID, evt.TS, status, note, evt.Job.Result); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	s.mu.Lock()
	delete(s.kinded, evt.JobID)
	s.mu.Unlock()
	s.logger.Debug("job run recorded",
		zap.String("job_id", evt.JobID),
		zap.String("status", string(status)),
	)
	return nil
}

func (s *StoreSink) hasKind(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.kinded[jobID]
	return ok
}

func (s *StoreSink) markKinded(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinded[jobID] = struct{}{}
}

// Close implements progress.Sink.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
