package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/report"
)

const loadTimeout = 20 * time.Second

// comparison handles GET /v1/comparison with optional filter parameters:
// source, only_new, only_unchecked, only_unmatched, published_after,
// published_before, and limit.
func (s *Server) comparison(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.collect(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": snap.Compare(filter)})
}

// report handles GET /v1/report.
func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.collect(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Report(s.deps.Now()))
}

// exportReport handles POST /v1/report/export and answers {"uri": ...}.
func (s *Server) exportReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report storage unavailable")
		return
	}
	snap, ok := s.collect(w, r)
	if !ok {
		return
	}
	uri, err := snap.Report(s.deps.Now()).Export(r.Context(), s.deps.Reports, s.deps.ReportPrefix)
	if err != nil {
		s.logger.Error("export report failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export report")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"uri": uri})
}

func (s *Server) collect(w http.ResponseWriter, r *http.Request) (report.Snapshot, bool) {
	if s.deps.Data == nil {
		writeError(w, http.StatusServiceUnavailable, "article backend unavailable")
		return report.Snapshot{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()
	snap, err := report.Collect(ctx, s.deps.Data, s.deps.Stats)
	if err != nil {
		s.logger.Error("load dashboard data failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to load data from backend")
		return report.Snapshot{}, false
	}
	return snap, true
}

func parseFilter(r *http.Request) (dashboard.Filter, error) {
	q := r.URL.Query()
	f := dashboard.Filter{Source: strings.TrimSpace(q.Get("source"))}
	var err error
	if f.OnlyNew, err = parseBool(q.Get("only_new"), "only_new"); err != nil {
		return dashboard.Filter{}, err
	}
	if f.OnlyUnchecked, err = parseBool(q.Get("only_unchecked"), "only_unchecked"); err != nil {
		return dashboard.Filter{}, err
	}
	if f.OnlyUnmatched, err = parseBool(q.Get("only_unmatched"), "only_unmatched"); err != nil {
		return dashboard.Filter{}, err
	}
	if f.PublishedAfter, err = parseTime(q.Get("published_after"), "published_after"); err != nil {
		return dashboard.Filter{}, err
	}
	if f.PublishedBefore, err = parseTime(q.Get("published_before"), "published_before"); err != nil {
		return dashboard.Filter{}, err
	}
	if raw := q.Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 0 {
			return dashboard.Filter{}, fmt.Errorf("limit must be a non-negative integer")
		}
		f.Limit = limit
	}
	return f, nil
}

func parseBool(raw, name string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return v, nil
}

func parseTime(raw, name string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	ts, ok := dashboard.ParseTimestamp(raw)
	if !ok {
		return nil, fmt.Errorf("%s must be an RFC3339 timestamp", name)
	}
	return &ts, nil
}
