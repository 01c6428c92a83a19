package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

type crawlRequest struct {
	URL string `json:"url"`
}

type crawlResponse struct {
	Run      crawler.Run       `json:"run"`
	Outcomes []crawler.Outcome `json:"outcomes,omitempty"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "crawl runner not configured")
		return
	}
	var req crawlRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL != "" && !isHTTPURL(req.URL) {
		s.writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	run, err := s.runner.Submit(r.Context(), req.URL)
	if errors.Is(err, crawler.ErrQueueFull) {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("submit crawl failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", "/v1/crawls/"+run.ID)
	s.writeJSON(w, http.StatusAccepted, crawlResponse{Run: run})
}

func (s *Server) getCrawl(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "crawl runner not configured")
		return
	}
	run, outcomes, err := s.runner.Get(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeStoreError(w, err, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, crawlResponse{Run: run, Outcomes: outcomes})
}

func (s *Server) cancelCrawl(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "crawl runner not configured")
		return
	}
	run, err := s.runner.Cancel(r.Context(), chi.URLParam(r, "run_id"))
	if errors.Is(err, crawler.ErrRunFinished) {
		s.writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "run": run})
		return
	}
	if err != nil {
		s.writeStoreError(w, err, "run not found")
		return
	}
	s.writeJSON(w, http.StatusAccepted, crawlResponse{Run: run})
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
