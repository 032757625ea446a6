// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/store"
)

//go:embed schema.sql
var schema string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// HistoryStore implements store.HistoryRepository on the job_runs table.
type HistoryStore struct {
	pool pool
}

var _ store.HistoryRepository = (*HistoryStore)(nil)

// NewHistoryStore connects to Postgres using cfg.
func NewHistoryStore(ctx context.Context, cfg Config) (*HistoryStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &HistoryStore{pool: p}, nil
}

// NewHistoryStoreWithPool wraps an existing pool (primarily for testing).
func NewHistoryStoreWithPool(p pool) (*HistoryStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	return &HistoryStore{pool: p}, nil
}

// Close closes the underlying connection pool.
func (s *HistoryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the job_runs table and its indexes when missing.
func (s *HistoryStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply job_runs schema: %w", err)
	}
	return nil
}

// UpsertJobStart inserts a running row; an existing row keeps its start time
// and only fills in a missing kind.
func (s *HistoryStore) UpsertJobStart(
	ctx context.Context,
	jobID string,
	kind dashboard.JobKind,
	startedAt time.Time,
) error {
	query := `
		INSERT INTO job_runs (job_id, kind, started_at, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO UPDATE
		SET kind = COALESCE(NULLIF(job_runs.kind, ''), EXCLUDED.kind);
	`
	if _, err := s.pool.Exec(ctx, query, jobID, string(kind), startedAt, store.RunRunning); err != nil {
		return fmt.Errorf("upsert job start: %w", err)
	}
	return nil
}

// CompleteJob stores the terminal status, failure reason, and result counters.
func (s *HistoryStore) CompleteJob(
	ctx context.Context,
	jobID string,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
	result *dashboard.JobResult,
) error {
	var payload []byte
	if result != nil {
		var err error
		payload, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
	}
	query := `
		UPDATE job_runs
		SET finished_at = $1, status = $2, error_message = $3, result = $4
		WHERE job_id = $5;
	`
	tag, err := s.pool.Exec(ctx, query, finishedAt, status, errMsg, payload, jobID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete job %s: %w", jobID, store.ErrNotFound)
	}
	return nil
}

const selectRun = `
	SELECT job_id, COALESCE(kind, ''), started_at, finished_at, status, error_message, result
	FROM job_runs
`

// GetJob loads one run by backend job id.
func (s *HistoryStore) GetJob(ctx context.Context, jobID string) (store.JobRun, error) {
	row := s.pool.QueryRow(ctx, selectRun+`WHERE job_id = $1;`, jobID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.JobRun{}, store.ErrNotFound
		}
		return store.JobRun{}, fmt.Errorf("get job: %w", err)
	}
	return run, nil
}

// ListJobs returns runs newest first, optionally filtered by status.
func (s *HistoryStore) ListJobs(
	ctx context.Context,
	status *store.RunStatus,
	limit,
	offset int,
) ([]store.JobRun, error) {
	var statusArg *string
	if status != nil {
		v := string(*status)
		statusArg = &v
	}
	query := selectRun + `
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, statusArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	runs := make([]store.JobRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (store.JobRun, error) {
	var (
		run    store.JobRun
		kind   string
		status string
		result []byte
	)
	if err := row.Scan(
		&run.JobID,
		&kind,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.ErrorMessage,
		&result,
	); err != nil {
		return store.JobRun{}, err
	}
	run.Kind = dashboard.JobKind(kind)
	run.Status = store.RunStatus(status)
	if len(result) > 0 {
		var res dashboard.JobResult
		if err := json.Unmarshal(result, &res); err != nil {
			return store.JobRun{}, fmt.Errorf("decode job result: %w", err)
		}
		run.Result = &res
	}
	return run, nil
}
