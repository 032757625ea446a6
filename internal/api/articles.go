package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/matchwatch/internal/client"
	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

type idsRequest struct {
	ArticleIDs []int64 `json:"articleIds"`
	MatchIDs   []int64 `json:"matchIds"`
}

// newArticles handles GET /v1/articles/new?source=.
func (s *Server) newArticles(w http.ResponseWriter, r *http.Request) {
	if s.deps.Curator == nil {
		writeError(w, http.StatusServiceUnavailable, "article backend unavailable")
		return
	}
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	articles, err := s.deps.Curator.NewArticles(r.Context(), source)
	if err != nil {
		s.backendError(w, "list new articles", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

// editArticles builds a handler for the bulk article endpoints. The body is
// {"articleIds": [...]}; when optional is set an empty list is allowed and
// means every article.
func (s *Server) editArticles(
	action string,
	optional bool,
	apply func(c dashboard.Curator, ctx context.Context, ids []int64) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Curator == nil {
			writeError(w, http.StatusServiceUnavailable, "article backend unavailable")
			return
		}
		req, ok := decodeIDs(w, r)
		if !ok {
			return
		}
		if !optional && len(req.ArticleIDs) == 0 {
			writeError(w, http.StatusBadRequest, "articleIds is required")
			return
		}
		if err := apply(s.deps.Curator, r.Context(), req.ArticleIDs); err != nil {
			s.backendError(w, action, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "articles": len(req.ArticleIDs)})
	}
}

// markAllNew handles POST /v1/articles/mark-all-new.
func (s *Server) markAllNew(w http.ResponseWriter, r *http.Request) {
	if s.deps.Curator == nil {
		writeError(w, http.StatusServiceUnavailable, "article backend unavailable")
		return
	}
	if err := s.deps.Curator.MarkAllNew(r.Context()); err != nil {
		s.backendError(w, "mark all articles new", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// deleteMatches handles DELETE /v1/matches with {"matchIds": [...]}.
func (s *Server) deleteMatches(w http.ResponseWriter, r *http.Request) {
	if s.deps.Curator == nil {
		writeError(w, http.StatusServiceUnavailable, "article backend unavailable")
		return
	}
	req, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	if len(req.MatchIDs) == 0 {
		writeError(w, http.StatusBadRequest, "matchIds is required")
		return
	}
	if err := s.deps.Curator.DeleteMatches(r.Context(), req.MatchIDs); err != nil {
		s.backendError(w, "delete matches", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "matches": len(req.MatchIDs)})
}

func decodeIDs(w http.ResponseWriter, r *http.Request) (idsRequest, bool) {
	var req idsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return idsRequest{}, false
	}
	for _, ids := range [][]int64{req.ArticleIDs, req.MatchIDs} {
		for _, id := range ids {
			if id <= 0 {
				writeError(w, http.StatusBadRequest, "ids must be positive")
				return idsRequest{}, false
			}
		}
	}
	return req, true
}

// backendError answers 502, passing the backend's own message through when
// it sent one.
func (s *Server) backendError(w http.ResponseWriter, action string, err error) {
	s.logger.Error(action+" failed", zap.Error(err))
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		writeError(w, http.StatusBadGateway, statusErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "backend request failed")
}
