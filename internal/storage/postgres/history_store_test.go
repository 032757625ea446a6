package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/store"
)

var runColumns = []string{"job_id", "kind", "started_at", "finished_at", "status", "error_message", "result"}

func newMockStore(t *testing.T) (*HistoryStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewHistoryStoreWithPool(mock)
	require.NoError(t, err)
	return s, mock
}

func TestNewHistoryStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewHistoryStore(context.Background(), Config{})
	require.Error(t, err)

	_, err = NewHistoryStoreWithPool(nil)
	require.Error(t, err)
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS job_runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertJobStart(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO job_runs").
		WithArgs("job-1", "find-matches", started, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertJobStart(context.Background(), "job-1", dashboard.JobKindFindMatches, started))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteJobStoresResult(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	finished := time.Unix(1700000100, 0).UTC()
	result := &dashboard.JobResult{TotalChecked: 40, TotalMatches: 7}
	mock.ExpectExec("UPDATE job_runs").
		WithArgs(finished, store.RunCompleted, (*string)(nil), pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteJob(context.Background(), "job-1", finished, store.RunCompleted, nil, result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteJobUnknownRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	msg := "boom"
	mock.ExpectExec("UPDATE job_runs").
		WithArgs(pgxmock.AnyArg(), store.RunFailed, &msg, []byte(nil), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteJob(context.Background(), "ghost", time.Now(), store.RunFailed, &msg, nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)
	rows := pgxmock.NewRows(runColumns).
		AddRow("job-1", "compare-quality", started, &finished, "completed", (*string)(nil),
			[]byte(`{"totalCompared":12}`))
	mock.ExpectQuery("SELECT job_id").WithArgs("job-1").WillReturnRows(rows)

	run, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, dashboard.JobKindCompareQuality, run.Kind)
	require.Equal(t, store.RunCompleted, run.Status)
	require.NotNil(t, run.FinishedAt)
	require.True(t, finished.Equal(*run.FinishedAt))
	require.NotNil(t, run.Result)
	require.Equal(t, 12, run.Result.TotalCompared)
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT job_id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListJobsFiltersByStatus(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()
	reason := "backend unavailable"
	rows := pgxmock.NewRows(runColumns).
		AddRow("job-2", "fetch-articles", started, (*time.Time)(nil), "failed", &reason, []byte(nil)).
		AddRow("job-1", "", started.Add(-time.Hour), (*time.Time)(nil), "failed", &reason, []byte(nil))
	status := store.RunFailed
	failed := "failed"
	mock.ExpectQuery("SELECT job_id").WithArgs(&failed, 10, 0).WillReturnRows(rows)

	runs, err := s.ListJobs(context.Background(), &status, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "job-2", runs[0].JobID)
	require.Nil(t, runs[0].Result)
	require.Equal(t, reason, *runs[1].ErrorMessage)
	require.Empty(t, runs[1].Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsQueryError(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT job_id").WithArgs((*string)(nil), 5, 5).WillReturnError(errors.New("down"))

	_, err := s.ListJobs(context.Background(), nil, 5, 5)
	require.Error(t, err)
}
