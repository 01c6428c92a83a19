package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// ArticleStore is the write side the ingest pipeline needs. Implementations
// must enforce source URL uniqueness and report violations as
// ErrDuplicateSource.
type ArticleStore interface {
	FindArticleBySourceURL(ctx context.Context, sourceURL string) (Article, bool, error)
	CreateArticle(ctx context.Context, article NewArticle) (Article, error)
	FindOrCreateTag(ctx context.Context, title string) (Tag, error)
	AddTagToArticle(ctx context.Context, articleID, tagID string) error
}

// ArticleQuery is the read side consumed by the API.
type ArticleQuery interface {
	ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, int, error)
	GetArticle(ctx context.Context, id string) (Article, error)
	ListTags(ctx context.Context, limit, offset int) ([]Tag, int, error)
	GetTag(ctx context.Context, id string) (Tag, error)
	CreateTag(ctx context.Context, title string) (Tag, error)
}

// Repository is implemented by every storage backend.
type Repository interface {
	ArticleStore
	ArticleQuery
	Close() error
}

// Ingester persists drafts.
type Ingester interface {
	Ingest(ctx context.Context, draft ArticleDraft) Outcome
}

// ListingParser turns a listing page into article links and a next page.
type ListingParser interface {
	Parse(page Page) (Listing, error)
}

// DraftExtractor turns an article page into a draft.
type DraftExtractor interface {
	Extract(page Page) (ArticleDraft, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// RunStore persists crawl run metadata and per-item outcomes.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, errText string, counters RunCounters) error
	RecordOutcome(ctx context.Context, runID string, outcome Outcome) error
	GetRun(ctx context.Context, runID string) (Run, error)
	ListOutcomes(ctx context.Context, runID string) ([]Outcome, error)
}

// HeadlessDetector decides whether a static response needs a rendered fetch.
type HeadlessDetector interface {
	ShouldPromote(resp FetchResponse) bool
}
