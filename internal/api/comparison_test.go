package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/matchwatch/internal/config"
	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/report"
)

func TestComparisonAllSources(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := do(t, env.server, http.MethodGet, "/v1/comparison", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Sources []dashboard.SourceComparison `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Sources, 2)
	ynet, walla := out.Sources[0], out.Sources[1]
	require.Equal(t, "ynet", ynet.Source)
	require.Equal(t, 2, ynet.Total)
	require.Equal(t, 1, ynet.FirstPublishedCount)
	require.Equal(t, "walla", walla.Source)
	require.Equal(t, 1, walla.BetterArticleCount)
	require.Equal(t, 10, walla.MedianDelayMinutes)
}

func TestComparisonFilters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := do(t, env.server, http.MethodGet,
		"/v1/comparison?source=ynet&published_after=2024-03-02T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Sources []dashboard.SourceComparison `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Sources, 1)
	require.Equal(t, 1, out.Sources[0].Total)
	require.Zero(t, out.Sources[0].Matches)
}

func TestComparisonRejectsBadParams(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	for _, q := range []string{"only_new=maybe", "published_before=yesterday", "limit=-3"} {
		rec := do(t, env.server, http.MethodGet, "/v1/comparison?"+q, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestComparisonBackendFailure(t *testing.T) {
	t.Parallel()

	data := sampleData()
	data.err = errors.New("connection refused")
	s := NewServer(Deps{Data: data}, config.Config{}, nil)
	rec := do(t, s, http.MethodGet, "/v1/comparison", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestReportAndExport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := do(t, env.server, http.MethodGet, "/v1/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var r report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	require.Equal(t, 3, r.Stats.TotalArticles)
	require.Len(t, r.Sources, 2)
	require.Len(t, r.RecentMatches, 1)

	rec = do(t, env.server, http.MethodPost, "/v1/report/export", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "memory://exports/report-20240303T120000Z.json", decode(t, rec)["uri"])
	_, contentType, ok := env.blobs.Object("exports/report-20240303T120000Z.json")
	require.True(t, ok)
	require.Equal(t, "application/json", contentType)
}
