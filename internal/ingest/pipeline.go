// Package ingest persists extracted article drafts idempotently.
//
// A draft whose source URL already exists is skipped without touching the
// store. New articles are created first and their tags attached afterwards;
// a tag that cannot be resolved is reported on the outcome and dropped while
// the article itself is kept.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/metrics"
)

// Config controls how drafts become articles.
type Config struct {
	// Private stores new articles with IsPublic=false.
	Private bool
}

// Pipeline implements crawler.Ingester.
type Pipeline struct {
	store  crawler.ArticleStore
	clock  crawler.Clock
	cfg    Config
	locks  *keyedLock
	logger *zap.Logger
}

// New constructs a Pipeline.
func New(store crawler.ArticleStore, clock crawler.Clock, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:  store,
		clock:  clock,
		cfg:    cfg,
		locks:  newKeyedLock(),
		logger: logger.Named("ingest"),
	}
}

// Ingest persists one draft and reports its terminal outcome. The store work
// runs on its own goroutine; if ctx ends first the caller gets a failed
// outcome immediately while the abandoned work winds down against the same
// canceled context.
func (p *Pipeline) Ingest(ctx context.Context, draft crawler.ArticleDraft) crawler.Outcome {
	done := make(chan crawler.Outcome, 1)
	go func() {
		done <- p.ingest(ctx, draft)
	}()

	var outcome crawler.Outcome
	select {
	case outcome = <-done:
	case <-ctx.Done():
		outcome = p.failed(draft.SourceURL, &crawler.PersistenceError{Op: "ingest", Err: ctx.Err()})
	}
	metrics.ObserveOutcome(string(outcome.Status))
	return outcome
}

func (p *Pipeline) ingest(ctx context.Context, draft crawler.ArticleDraft) crawler.Outcome {
	if strings.TrimSpace(draft.SourceURL) == "" {
		return p.failed(draft.SourceURL, &crawler.ExtractionError{Field: "source_url"})
	}
	if err := ctx.Err(); err != nil {
		return p.failed(draft.SourceURL, &crawler.PersistenceError{Op: "ingest", Err: err})
	}

	unlock, err := p.locks.lock(ctx, draft.SourceURL)
	if err != nil {
		return p.failed(draft.SourceURL, &crawler.PersistenceError{Op: "lock source", Err: err})
	}
	defer unlock()

	existing, found, err := p.store.FindArticleBySourceURL(ctx, draft.SourceURL)
	if err != nil {
		return p.failed(draft.SourceURL, &crawler.PersistenceError{Op: "find article", Err: err})
	}
	if found {
		p.logger.Debug("article already stored",
			zap.String("source_url", draft.SourceURL),
			zap.String("article_id", existing.ID),
		)
		return p.skipped(draft.SourceURL, existing.ID)
	}

	article, err := p.store.CreateArticle(ctx, crawler.NewArticle{
		Title:     crawler.ClampTitle(draft.Title),
		Content:   draft.Body,
		SourceURL: draft.SourceURL,
		IsPublic:  !p.cfg.Private,
	})
	if errors.Is(err, crawler.ErrDuplicateSource) {
		// Another process created it between the lookup and the insert.
		p.logger.Debug("lost creation race", zap.String("source_url", draft.SourceURL))
		return p.skipped(draft.SourceURL, "")
	}
	if err != nil {
		return p.failed(draft.SourceURL, &crawler.PersistenceError{Op: "create article", Err: err})
	}

	tags, tagErrs := p.attachTags(ctx, article.ID, draft.Tags)
	p.logger.Info("article created",
		zap.String("source_url", draft.SourceURL),
		zap.String("article_id", article.ID),
		zap.Int("tags", len(tags)),
		zap.Int("tag_errors", len(tagErrs)),
	)
	return crawler.Outcome{
		SourceURL:  draft.SourceURL,
		Status:     crawler.OutcomeCreated,
		ArticleID:  article.ID,
		Tags:       tags,
		TagErrors:  tagErrs,
		FinishedAt: p.clock.Now(),
	}
}

// attachTags resolves and links each distinct title in draft order.
func (p *Pipeline) attachTags(ctx context.Context, articleID string, titles []string) ([]crawler.Tag, []error) {
	var (
		tags []crawler.Tag
		errs []error
	)
	seen := make(map[string]struct{}, len(titles))
	for _, raw := range titles {
		title := crawler.ClampTitle(raw)
		if title == "" {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}

		tag, err := p.resolveTag(ctx, articleID, title)
		if err != nil {
			p.logger.Warn("tag dropped",
				zap.String("article_id", articleID),
				zap.String("tag", title),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		tags = append(tags, tag)
	}
	return tags, errs
}

func (p *Pipeline) resolveTag(ctx context.Context, articleID, title string) (crawler.Tag, error) {
	tag, err := p.store.FindOrCreateTag(ctx, title)
	if err != nil {
		return crawler.Tag{}, &crawler.TagResolutionError{Title: title, Err: fmt.Errorf("find or create: %w", err)}
	}
	if err := p.store.AddTagToArticle(ctx, articleID, tag.ID); err != nil {
		return crawler.Tag{}, &crawler.TagResolutionError{Title: title, Err: fmt.Errorf("associate: %w", err)}
	}
	return tag, nil
}

func (p *Pipeline) skipped(sourceURL, articleID string) crawler.Outcome {
	return crawler.Outcome{
		SourceURL:  sourceURL,
		Status:     crawler.OutcomeSkipped,
		Reason:     crawler.SkipReasonDuplicate,
		ArticleID:  articleID,
		FinishedAt: p.clock.Now(),
	}
}

func (p *Pipeline) failed(sourceURL string, err error) crawler.Outcome {
	p.logger.Error("ingest failed", zap.String("source_url", sourceURL), zap.Error(err))
	return crawler.Outcome{
		SourceURL:  sourceURL,
		Status:     crawler.OutcomeFailed,
		Reason:     err.Error(),
		Err:        err,
		FinishedAt: p.clock.Now(),
	}
}
