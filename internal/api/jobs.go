package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

const maxRequestBody = 1 << 20

// listJobs handles GET /v1/jobs and returns the live registry in insertion order.
func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Registry == nil {
		writeError(w, http.StatusServiceUnavailable, "job registry unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.deps.Registry.Tracked()})
}

// getJob handles GET /v1/jobs/{job_id}.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		writeError(w, http.StatusServiceUnavailable, "job registry unavailable")
		return
	}
	jobID := strings.TrimSpace(chi.URLParam(r, "ref"))
	tracked, ok := s.deps.Registry.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": tracked})
}

// launchJob handles POST /v1/jobs/{kind}. The optional body carries
// dashboard.LaunchOptions; the new job is handed to the registry.
func (s *Server) launchJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Launcher == nil || s.deps.Registry == nil {
		writeError(w, http.StatusServiceUnavailable, "job launcher unavailable")
		return
	}
	kind := dashboard.JobKind(chi.URLParam(r, "ref"))
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown job kind")
		return
	}
	var opts dashboard.LaunchOptions
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	jobID, err := s.deps.Launcher.Launch(r.Context(), kind, opts)
	if err != nil {
		s.backendError(w, "launch "+string(kind), err)
		return
	}
	started := s.deps.Registry.Start(jobID)
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID, "tracking": started})
}
