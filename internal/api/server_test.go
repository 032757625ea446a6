package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/matchwatch/internal/client"
	"github.com/JakeFAU/matchwatch/internal/config"
	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/registry"
	"github.com/JakeFAU/matchwatch/internal/storage/memory"
)

type fakeRegistry struct {
	mu      sync.Mutex
	started []string
	jobs    map[string]registry.TrackedJob
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{jobs: make(map[string]registry.TrackedJob)}
}

func (f *fakeRegistry) Start(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[jobID]; ok {
		return false
	}
	f.started = append(f.started, jobID)
	f.jobs[jobID] = registry.TrackedJob{Job: dashboard.Job{ID: jobID, Status: dashboard.JobStatusPending}}
	return true
}

func (f *fakeRegistry) Tracked() []registry.TrackedJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]registry.TrackedJob, 0, len(f.started))
	for _, id := range f.started {
		out = append(out, f.jobs[id])
	}
	return out
}

func (f *fakeRegistry) Get(jobID string) (registry.TrackedJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	return j, ok
}

type fakeLauncher struct {
	id    string
	err   error
	kinds []dashboard.JobKind
	opts  []dashboard.LaunchOptions
	panic bool
}

func (f *fakeLauncher) Launch(_ context.Context, kind dashboard.JobKind, opts dashboard.LaunchOptions) (string, error) {
	if f.panic {
		panic("launcher exploded")
	}
	f.kinds = append(f.kinds, kind)
	f.opts = append(f.opts, opts)
	return f.id, f.err
}

type fakeData struct {
	articles []dashboard.Article
	matches  []dashboard.Match
	sources  []string
	err      error
}

func (f fakeData) Articles(context.Context, dashboard.Filter) ([]dashboard.Article, error) {
	return f.articles, f.err
}

func (f fakeData) Matches(context.Context) ([]dashboard.Match, error) {
	return f.matches, nil
}

func (f fakeData) Sources(context.Context) ([]string, error) {
	return f.sources, nil
}

func sampleData() fakeData {
	diff := 600.0
	return fakeData{
		articles: []dashboard.Article{
			{ID: 1, Source: "ynet", Checked: 1, IsNew: 1, Published: "2024-03-01T10:00:00Z"},
			{ID: 2, Source: "ynet", Published: "2024-03-02T10:00:00Z"},
			{ID: 3, Source: "walla", Checked: 1, Published: "2024-03-01T10:10:00Z"},
		},
		matches: []dashboard.Match{{
			MatchID: 1, Article1ID: 1, Article2ID: 3,
			Article1Source: "ynet", Article2Source: "walla",
			BetterArticleSource: "walla", FirstPublishedID: 1,
			PublishedDiffSeconds: &diff, CreatedAt: "2024-03-01T11:00:00Z",
		}},
		sources: []string{"ynet", "walla"},
	}
}

// fakeCurator records every bulk edit as "<op>:<ids>".
type fakeCurator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeCurator) record(op string, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%v", op, ids))
	return f.err
}

func (f *fakeCurator) NewArticles(_ context.Context, source string) ([]dashboard.Article, error) {
	if err := f.record("new:"+source, nil); err != nil {
		return nil, err
	}
	return []dashboard.Article{{ID: 9, Source: "ynet", IsNew: 1}}, nil
}

func (f *fakeCurator) DeleteArticles(_ context.Context, ids []int64) error {
	return f.record("delete", ids)
}

func (f *fakeCurator) MarkArticlesChecked(_ context.Context, ids []int64) error {
	return f.record("checked", ids)
}

func (f *fakeCurator) MarkArticlesOld(_ context.Context, ids []int64) error {
	return f.record("old", ids)
}

func (f *fakeCurator) MarkAllNew(context.Context) error {
	return f.record("all-new", nil)
}

func (f *fakeCurator) ResetChecked(_ context.Context, ids []int64) error {
	return f.record("reset", ids)
}

func (f *fakeCurator) DeleteMatches(_ context.Context, ids []int64) error {
	return f.record("delete-matches", ids)
}

func (f *fakeCurator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type testEnv struct {
	server   *Server
	registry *fakeRegistry
	launcher *fakeLauncher
	curator  *fakeCurator
	history  *memory.HistoryStore
	blobs    *memory.BlobStore
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	env := &testEnv{
		registry: newFakeRegistry(),
		launcher: &fakeLauncher{id: "job-1"},
		curator:  &fakeCurator{},
		history:  memory.NewHistoryStore(),
		blobs:    memory.NewBlobStore(),
	}
	env.server = NewServer(Deps{
		Registry:     env.registry,
		Launcher:     env.launcher,
		Data:         sampleData(),
		Curator:      env.curator,
		History:      env.history,
		Reports:      env.blobs,
		ReportPrefix: "exports",
		Now:          func() time.Time { return time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC) },
	}, cfg, zap.NewNop())
	return env
}

func do(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := do(t, env.server, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, env.server, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReadyzReportsFailure(t *testing.T) {
	t.Parallel()

	s := NewServer(Deps{Ready: func(context.Context) error { return errors.New("db down") }}, config.Config{}, nil)
	rec := do(t, s, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RequestIDPropagates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	do(t, env.server, http.MethodGet, "/healthz", nil)
	rec := do(t, env.server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_APIKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}})
	rec := do(t, env.server, http.MethodGet, "/v1/jobs", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, env.server, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	env.launcher.panic = true
	rec := do(t, env.server, http.MethodPost, "/v1/jobs/fetch-articles", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", decode(t, rec)["error"])
}

func TestServer_MissingDependencies(t *testing.T) {
	t.Parallel()

	s := NewServer(Deps{}, config.Config{}, nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/jobs"},
		{http.MethodGet, "/v1/jobs/j-1"},
		{http.MethodPost, "/v1/jobs/find-matches"},
		{http.MethodGet, "/v1/comparison"},
		{http.MethodGet, "/v1/report"},
		{http.MethodPost, "/v1/report/export"},
		{http.MethodGet, "/v1/history"},
		{http.MethodGet, "/v1/history/j-1"},
		{http.MethodGet, "/v1/articles/new"},
		{http.MethodDelete, "/v1/articles"},
		{http.MethodPost, "/v1/articles/mark-checked"},
		{http.MethodPost, "/v1/articles/mark-old"},
		{http.MethodPost, "/v1/articles/mark-all-new"},
		{http.MethodPost, "/v1/articles/reset-checked"},
		{http.MethodDelete, "/v1/matches"},
	} {
		rec := do(t, s, tc.method, tc.path, nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestServer_LaunchBackendError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	env.launcher.err = &client.StatusError{Endpoint: "launch", Code: 500, Message: "database is locked"}
	rec := do(t, env.server, http.MethodPost, "/v1/jobs/find-matches", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "database is locked", decode(t, rec)["error"])
	require.Empty(t, env.registry.started)
}
