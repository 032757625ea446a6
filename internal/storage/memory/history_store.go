package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/store"
)

// HistoryStore keeps job runs in-memory for development and tests.
type HistoryStore struct {
	mu   sync.RWMutex
	runs map[string]store.JobRun
}

var _ store.HistoryRepository = (*HistoryStore)(nil)

// NewHistoryStore constructs an empty HistoryStore.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{runs: make(map[string]store.JobRun)}
}

// UpsertJobStart records a running row, keeping the first start time.
func (s *HistoryStore) UpsertJobStart(
	_ context.Context,
	jobID string,
	kind dashboard.JobKind,
	startedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[jobID]
	if !ok {
		s.runs[jobID] = store.JobRun{
			JobID:     jobID,
			Kind:      kind,
			StartedAt: startedAt,
			Status:    store.RunRunning,
		}
		return nil
	}
	if run.Kind == "" {
		run.Kind = kind
		s.runs[jobID] = run
	}
	return nil
}

// CompleteJob stores the terminal outcome of a run.
func (s *HistoryStore) CompleteJob(
	_ context.Context,
	jobID string,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
	result *dashboard.JobResult,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[jobID]
	if !ok {
		return fmt.Errorf("complete job %s: %w", jobID, store.ErrNotFound)
	}
	run.FinishedAt = pointerTime(finishedAt)
	run.Status = status
	run.ErrorMessage = copyString(errMsg)
	if result != nil {
		res := *result
		run.Result = &res
	}
	s.runs[jobID] = run
	return nil
}

// GetJob fetches a run by job id.
func (s *HistoryStore) GetJob(_ context.Context, jobID string) (store.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[jobID]
	if !ok {
		return store.JobRun{}, store.ErrNotFound
	}
	return run, nil
}

// ListJobs returns runs newest first, optionally filtered by status.
func (s *HistoryStore) ListJobs(
	_ context.Context,
	status *store.RunStatus,
	limit,
	offset int,
) ([]store.JobRun, error) {
	s.mu.RLock()
	out := make([]store.JobRun, 0, len(s.runs))
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		out = append(out, run)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].JobID > out[j].JobID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if offset >= len(out) {
		return []store.JobRun{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
