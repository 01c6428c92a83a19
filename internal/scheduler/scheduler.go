// Package scheduler drives a crawl run: it walks listing pages in order,
// fetches every discovered article and hands the extracted drafts to the
// ingest pipeline.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/frontier"
	"github.com/JakeFAU/newsroom-crawler/internal/metrics"
)

// Limiter gates fetches per domain.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Archiver stores the raw HTML of article pages.
type Archiver interface {
	Archive(ctx context.Context, pageURL string, body []byte) (string, error)
}

// Config controls per-run behavior.
type Config struct {
	RenderListing  bool
	RenderArticles bool
	// EventTopic receives a message per created article. Empty disables it.
	EventTopic string
}

// Deps are the collaborators of a Scheduler. Fetcher, Listings, Extractor and
// Ingester are required; the rest may be nil.
type Deps struct {
	Fetcher   crawler.Fetcher
	Listings  crawler.ListingParser
	Extractor crawler.DraftExtractor
	Ingester  crawler.Ingester
	Allowlist *crawler.DomainAllowlist
	Limiter   Limiter
	Retry     crawler.RetryPolicy
	Detector  crawler.HeadlessDetector
	Archiver  Archiver
	Publisher crawler.Publisher
	Clock     crawler.Clock
}

// Report summarizes one run.
type Report struct {
	Mode       crawler.RunMode     `json:"mode"`
	Seeds      []string            `json:"seeds"`
	Outcomes   []crawler.Outcome   `json:"outcomes"`
	Counters   crawler.RunCounters `json:"counters"`
	Frontier   frontier.Stats      `json:"frontier"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// CreatedEvent is published for every newly stored article.
type CreatedEvent struct {
	ArticleID string    `json:"article_id"`
	SourceURL string    `json:"source_url"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// Scheduler runs crawls. It is safe for concurrent runs; each run owns its
// frontier and shares only the collaborators.
type Scheduler struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New validates deps and builds a Scheduler.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("scheduler: fetcher is required")
	case deps.Listings == nil:
		return nil, errors.New("scheduler: listing parser is required")
	case deps.Extractor == nil:
		return nil, errors.New("scheduler: article extractor is required")
	case deps.Ingester == nil:
		return nil, errors.New("scheduler: ingester is required")
	}
	if deps.Retry == nil {
		deps.Retry = crawler.NewExponentialRetryPolicy(0, 0, 0)
	}
	if deps.Clock == nil {
		deps.Clock = utcClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{deps: deps, cfg: cfg, logger: logger.Named("scheduler")}, nil
}

// run is the per-invocation state.
type run struct {
	frontier *frontier.Frontier
	report   Report
	logger   *zap.Logger
	// offsite counts fetched pages whose final URL left the allowlist.
	offsite int
}

// RunFull crawls from the listing seeds until the frontier drains or ctx
// ends. The returned report is complete up to the point of cancellation; the
// error is non-nil only when ctx ended the run.
func (s *Scheduler) RunFull(ctx context.Context, seeds []string) (Report, error) {
	r := s.newRun(crawler.RunModeFull, seeds)
	for _, seed := range seeds {
		if !r.frontier.Push(seed, crawler.PageKindListing, 0) {
			r.logger.Warn("seed rejected", zap.String("url", seed))
		}
	}
	err := s.drain(ctx, r)
	return s.finish(r), err
}

// RunSingle fetches and ingests one article page, bypassing listings.
func (s *Scheduler) RunSingle(ctx context.Context, articleURL string) (Report, error) {
	r := s.newRun(crawler.RunModeSingle, []string{articleURL})
	if !r.frontier.Push(articleURL, crawler.PageKindArticle, 0) {
		r.logger.Warn("article url rejected", zap.String("url", articleURL))
	}
	err := s.drain(ctx, r)
	return s.finish(r), err
}

func (s *Scheduler) newRun(mode crawler.RunMode, seeds []string) *run {
	return &run{
		frontier: frontier.New(s.deps.Allowlist),
		report: Report{
			Mode:      mode,
			Seeds:     append([]string(nil), seeds...),
			Outcomes:  []crawler.Outcome{},
			StartedAt: s.deps.Clock.Now(),
		},
		logger: s.logger.With(zap.String("mode", string(mode))),
	}
}

func (s *Scheduler) finish(r *run) Report {
	r.report.Frontier = r.frontier.Stats()
	r.report.Counters.Dropped = r.report.Frontier.Dropped + r.offsite
	r.report.FinishedAt = s.deps.Clock.Now()
	r.logger.Info("crawl finished",
		zap.Int("listing_pages", r.report.Counters.ListingPages),
		zap.Int("article_pages", r.report.Counters.ArticlePages),
		zap.Int("created", r.report.Counters.Created),
		zap.Int("skipped", r.report.Counters.Skipped),
		zap.Int("failed", r.report.Counters.Failed),
		zap.Int("fetch_errors", r.report.Counters.FetchErrors),
		zap.Int("parse_errors", r.report.Counters.ParseErrors),
		zap.Int("dropped", r.report.Counters.Dropped),
	)
	return r.report
}

func (s *Scheduler) drain(ctx context.Context, r *run) error {
	for {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("crawl canceled", zap.Int("pending", r.frontier.Len()), zap.Error(err))
			return fmt.Errorf("crawl canceled: %w", err)
		}
		entry, ok := r.frontier.Pop()
		if !ok {
			return nil
		}
		switch entry.Kind {
		case crawler.PageKindListing:
			s.handleListing(ctx, r, entry)
		case crawler.PageKindArticle:
			s.handleArticle(ctx, r, entry)
		}
	}
}

func (s *Scheduler) handleListing(ctx context.Context, r *run, entry frontier.Entry) {
	resp, err := s.fetch(ctx, entry.URL, crawler.PageKindListing, s.cfg.RenderListing)
	if err != nil {
		r.report.Counters.FetchErrors++
		r.logger.Warn("listing fetch failed", zap.String("url", entry.URL), zap.Error(err))
		return
	}
	if !s.admitsFinal(r, entry.URL, resp) {
		return
	}
	r.report.Counters.ListingPages++
	r.frontier.MarkVisited(resp.URL)

	// The page number lives on the requested URL; a redirect that drops the
	// query must not end pagination.
	listing, err := s.deps.Listings.Parse(crawler.Page{URL: entry.URL, Body: resp.Body})
	if err != nil {
		r.report.Counters.ParseErrors++
		r.logger.Warn("listing parse failed", zap.String("url", entry.URL), zap.Error(err))
		return
	}
	for _, link := range listing.ArticleURLs {
		r.frontier.Push(link, crawler.PageKindArticle, listing.PageNumber)
	}
	if listing.HasNextPage {
		r.frontier.Push(listing.NextPageURL, crawler.PageKindListing, listing.PageNumber)
	}
	r.logger.Debug("listing processed",
		zap.String("url", entry.URL),
		zap.Int("page", listing.PageNumber),
		zap.Int("articles", len(listing.ArticleURLs)),
		zap.Bool("has_next", listing.HasNextPage),
	)
}

func (s *Scheduler) handleArticle(ctx context.Context, r *run, entry frontier.Entry) {
	resp, err := s.fetch(ctx, entry.URL, crawler.PageKindArticle, s.cfg.RenderArticles)
	if err != nil {
		r.report.Counters.FetchErrors++
		r.record(crawler.Outcome{
			SourceURL:  entry.URL,
			Status:     crawler.OutcomeFailed,
			Reason:     err.Error(),
			Err:        err,
			FinishedAt: s.deps.Clock.Now(),
		})
		r.logger.Warn("article fetch failed", zap.String("url", entry.URL), zap.Error(err))
		return
	}
	resp = s.maybePromote(ctx, r, entry.URL, resp)
	if !s.admitsFinal(r, entry.URL, resp) {
		return
	}
	r.report.Counters.ArticlePages++
	r.frontier.MarkVisited(resp.URL)
	s.archive(ctx, r, resp)

	draft, err := s.deps.Extractor.Extract(crawler.Page{URL: resp.URL, Body: resp.Body})
	if err != nil {
		r.report.Counters.ParseErrors++
		r.record(crawler.Outcome{
			SourceURL:  resp.URL,
			Status:     crawler.OutcomeFailed,
			Reason:     err.Error(),
			Err:        err,
			FinishedAt: s.deps.Clock.Now(),
		})
		r.logger.Warn("article extraction failed", zap.String("url", resp.URL), zap.Error(err))
		return
	}

	outcome := s.deps.Ingester.Ingest(ctx, draft)
	r.record(outcome)
	fields := []zap.Field{
		zap.String("url", outcome.SourceURL),
		zap.String("status", string(outcome.Status)),
		zap.String("article_id", outcome.ArticleID),
	}
	switch outcome.Status {
	case crawler.OutcomeFailed:
		r.logger.Warn("article ingest failed", append(fields, zap.Error(outcome.Err))...)
	case crawler.OutcomeCreated:
		r.logger.Info("article ingested", append(fields, zap.Int("tags", len(outcome.Tags)))...)
		s.publishCreated(ctx, r, draft, outcome)
	default:
		r.logger.Debug("article ingested", append(fields, zap.String("reason", outcome.Reason))...)
	}
}

// admitsFinal drops pages that redirected off the allowlist.
func (s *Scheduler) admitsFinal(r *run, requested string, resp crawler.FetchResponse) bool {
	if resp.URL == "" || s.deps.Allowlist.AllowsURL(resp.URL) {
		return true
	}
	r.offsite++
	r.logger.Warn("page redirected off the allowlist; dropped",
		zap.String("url", requested),
		zap.String("final_url", resp.URL),
	)
	return false
}

func (r *run) record(outcome crawler.Outcome) {
	r.report.Outcomes = append(r.report.Outcomes, outcome)
	switch outcome.Status {
	case crawler.OutcomeCreated:
		r.report.Counters.Created++
	case crawler.OutcomeSkipped:
		r.report.Counters.Skipped++
	case crawler.OutcomeFailed:
		r.report.Counters.Failed++
	}
}

// fetch waits for the domain limiter and retries transient failures.
func (s *Scheduler) fetch(ctx context.Context, rawURL string, kind crawler.PageKind, render bool) (crawler.FetchResponse, error) {
	request := crawler.FetchRequest{URL: rawURL, Kind: kind, RenderRequired: render}
	for attempt := 0; ; attempt++ {
		if s.deps.Limiter != nil {
			if err := s.deps.Limiter.Wait(ctx, rawURL); err != nil {
				return crawler.FetchResponse{}, &crawler.FetchError{URL: rawURL, Err: err}
			}
		}
		resp, err := s.deps.Fetcher.Fetch(ctx, request)
		if err == nil {
			metrics.ObservePage(rawURL, string(kind), "ok", len(resp.Body))
			metrics.ObserveFetch(string(kind), backend(resp.UsedHeadless), resp.Duration)
			return resp, nil
		}
		metrics.ObservePage(rawURL, string(kind), "error", 0)
		if !s.deps.Retry.ShouldRetry(err, attempt) {
			return crawler.FetchResponse{}, err
		}
		wait := s.deps.Retry.Backoff(attempt)
		s.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return crawler.FetchResponse{}, &crawler.FetchError{URL: rawURL, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// maybePromote refetches a static article page through the renderer when it
// looks like an unrendered shell.
func (s *Scheduler) maybePromote(ctx context.Context, r *run, rawURL string, resp crawler.FetchResponse) crawler.FetchResponse {
	if s.deps.Detector == nil || resp.UsedHeadless || !s.deps.Detector.ShouldPromote(resp) {
		return resp
	}
	rendered, err := s.fetch(ctx, rawURL, crawler.PageKindArticle, true)
	if err != nil {
		r.logger.Warn("headless promotion failed", zap.String("url", rawURL), zap.Error(err))
		return resp
	}
	r.logger.Debug("headless promotion applied", zap.String("url", rawURL))
	return rendered
}

func (s *Scheduler) archive(ctx context.Context, r *run, resp crawler.FetchResponse) {
	if s.deps.Archiver == nil {
		return
	}
	uri, err := s.deps.Archiver.Archive(ctx, resp.URL, resp.Body)
	if err != nil {
		r.logger.Warn("archive page failed", zap.String("url", resp.URL), zap.Error(err))
		return
	}
	r.logger.Debug("page archived", zap.String("url", resp.URL), zap.String("blob_uri", uri))
}

func (s *Scheduler) publishCreated(ctx context.Context, r *run, draft crawler.ArticleDraft, outcome crawler.Outcome) {
	if s.cfg.EventTopic == "" || s.deps.Publisher == nil {
		return
	}
	tags := make([]string, 0, len(outcome.Tags))
	for _, tag := range outcome.Tags {
		tags = append(tags, tag.Title)
	}
	event := CreatedEvent{
		ArticleID: outcome.ArticleID,
		SourceURL: outcome.SourceURL,
		Title:     crawler.ClampTitle(draft.Title),
		Tags:      tags,
		CreatedAt: outcome.FinishedAt,
	}
	msgID, err := s.deps.Publisher.Publish(ctx, s.cfg.EventTopic, event)
	if err != nil {
		r.logger.Warn("publish created event failed", zap.String("article_id", outcome.ArticleID), zap.Error(err))
		return
	}
	r.logger.Debug("created event published",
		zap.String("article_id", outcome.ArticleID),
		zap.String("message_id", msgID),
	)
}

func backend(headless bool) string {
	if headless {
		return "headless"
	}
	return "static"
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }
