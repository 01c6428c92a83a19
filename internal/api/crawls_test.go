package api

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

type fakeRunner struct {
	mu        sync.Mutex
	submitted []string
	runs      map[string]crawler.Run
	submitErr error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{runs: map[string]crawler.Run{}}
}

func (f *fakeRunner) Submit(_ context.Context, articleURL string) (crawler.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return crawler.Run{}, f.submitErr
	}
	f.submitted = append(f.submitted, articleURL)
	mode := crawler.RunModeFull
	if articleURL != "" {
		mode = crawler.RunModeSingle
	}
	run := crawler.Run{ID: "run-1", Mode: mode, Status: crawler.RunStatusQueued}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRunner) Get(_ context.Context, runID string) (crawler.Run, []crawler.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return crawler.Run{}, nil, crawler.ErrNotFound
	}
	return run, []crawler.Outcome{{SourceURL: "https://x/a", Status: crawler.OutcomeCreated}}, nil
}

func (f *fakeRunner) Cancel(_ context.Context, runID string) (crawler.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return crawler.Run{}, crawler.ErrNotFound
	}
	if run.Status.Terminal() {
		return run, crawler.ErrRunFinished
	}
	run.Status = crawler.RunStatusCanceled
	f.runs[runID] = run
	return run, nil
}

func TestSubmitCrawl(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	s := NewServer(newTestStore(), runner, nil, Options{}, zap.NewNop())

	rec := do(t, s, http.MethodPost, "/v1/crawls", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "/v1/crawls/run-1", rec.Header().Get("Location"))

	rec = do(t, s, http.MethodPost, "/v1/crawls", `{"url":"https://www.zoomit.ir/tech/1/"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), `"mode":"single"`)
	require.Equal(t, []string{"", "https://www.zoomit.ir/tech/1/"}, runner.submitted)

	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/v1/crawls", `{"url":"ftp://x"}`).Code)
	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/v1/crawls", `{"seeds":[]}`).Code)

	runner.submitErr = crawler.ErrQueueFull
	require.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodPost, "/v1/crawls", "").Code)
}

func TestGetAndCancelCrawl(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	s := NewServer(newTestStore(), runner, nil, Options{}, zap.NewNop())
	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/v1/crawls", "").Code)

	rec := do(t, s, http.MethodGet, "/v1/crawls/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"outcomes"`)

	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodDelete, "/v1/crawls/run-1", "").Code)
	require.Equal(t, http.StatusConflict, do(t, s, http.MethodDelete, "/v1/crawls/run-1", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/crawls/missing", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/v1/crawls/missing", "").Code)
}

func TestCrawlRoutesWithoutRunner(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	require.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodPost, "/v1/crawls", "").Code)
	require.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/v1/crawls/x", "").Code)
}
