package crawler

import (
	"net/http"
	"time"
)

// ArticleDraft is an extracted, not-yet-persisted article.
type ArticleDraft struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	SourceURL string   `json:"source_url"`
	Tags      []string `json:"tags"`
}

// Article is the persisted article record.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	SourceURL string    `json:"source_url"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []Tag     `json:"tags"`
}

// NewArticle carries the fields required to create an Article.
type NewArticle struct {
	Title     string
	Content   string
	SourceURL string
	IsPublic  bool
}

// Tag labels articles. Its title is its identity.
type Tag struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ArticleFilter narrows article listings.
//
// A nil slice means the filter is not applied. A non-nil empty slice means the
// caller asked for the filter but supplied no usable values, which matches
// nothing.
type ArticleFilter struct {
	Tags       []string
	Keywords   []string
	Excludes   []string
	PublicOnly bool
	Limit      int
	Offset     int
}

// OutcomeStatus is the terminal state of one ingested item.
type OutcomeStatus string

// Outcome status values.
const (
	OutcomeCreated OutcomeStatus = "created"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// SkipReasonDuplicate is recorded when the source URL already exists.
const SkipReasonDuplicate = "duplicate"

// Outcome reports what happened to one draft.
type Outcome struct {
	SourceURL  string        `json:"source_url"`
	Status     OutcomeStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	ArticleID  string        `json:"article_id,omitempty"`
	Tags       []Tag         `json:"tags,omitempty"`
	TagErrors  []error       `json:"-"`
	Err        error         `json:"-"`
	FinishedAt time.Time     `json:"finished_at"`
}

// PageKind tells the scheduler how a fetched page is processed.
type PageKind string

// Page kinds.
const (
	PageKindListing PageKind = "listing"
	PageKindArticle PageKind = "article"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL            string
	Kind           PageKind
	RenderRequired bool
	Headers        http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	// URL is the final URL after redirects.
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Page is a fetched document handed to the parsers.
type Page struct {
	URL  string
	Body []byte
}

// Listing is what a listing page yields: article links in crawl order and an
// optional next page.
type Listing struct {
	PageNumber  int
	ArticleURLs []string
	NextPageURL string
	HasNextPage bool
}

// RunStatus tracks the lifecycle of a crawl run.
type RunStatus string

// Run statuses.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// RunMode selects between a paginated crawl and a single article.
type RunMode string

// Run modes.
const (
	RunModeFull   RunMode = "full"
	RunModeSingle RunMode = "single"
)

// RunCounters aggregates what a crawl run did.
type RunCounters struct {
	ListingPages int `json:"listing_pages"`
	ArticlePages int `json:"article_pages"`
	FetchErrors  int `json:"fetch_errors"`
	ParseErrors  int `json:"parse_errors"`
	Dropped      int `json:"dropped"`
	Created      int `json:"created"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Run is one invocation of the crawl.
type Run struct {
	ID        string      `json:"id"`
	Mode      RunMode     `json:"mode"`
	Seeds     []string    `json:"seeds"`
	Status    RunStatus   `json:"status"`
	ErrorText string      `json:"error,omitempty"`
	Counters  RunCounters `json:"counters"`
	Created   time.Time   `json:"created_at"`
	Started   *time.Time  `json:"started_at,omitempty"`
	Finished  *time.Time  `json:"finished_at,omitempty"`
}

// QueueItem is a queued crawl run.
type QueueItem struct {
	RunID string
}
