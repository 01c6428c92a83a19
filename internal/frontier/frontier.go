// Package frontier tracks the per-run crawl queue, visited set, and page
// counters.
package frontier

import (
	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

// Entry is one scheduled fetch.
type Entry struct {
	URL  string
	Kind crawler.PageKind
	// Page is the listing page number that discovered this entry, 0 for seeds.
	Page int
}

// Stats summarizes frontier activity.
type Stats struct {
	Enqueued     int `json:"enqueued"`
	Duplicates   int `json:"duplicates"`
	Dropped      int `json:"dropped"`
	ListingPages int `json:"listing_pages"`
	ArticlePages int `json:"article_pages"`
}

// Frontier is a FIFO queue with a visited set. It is owned by a single crawl
// run and is not safe for concurrent use.
type Frontier struct {
	allow   *crawler.DomainAllowlist
	queue   []Entry
	visited map[string]struct{}
	stats   Stats
}

// New creates an empty frontier. A nil allowlist admits every host.
func New(allow *crawler.DomainAllowlist) *Frontier {
	return &Frontier{
		allow:   allow,
		visited: make(map[string]struct{}),
	}
}

// Push schedules rawURL unless it is off the allowlist, malformed, or already
// seen. It reports whether the URL was enqueued.
func (f *Frontier) Push(rawURL string, kind crawler.PageKind, page int) bool {
	if !f.allow.AllowsURL(rawURL) {
		f.stats.Dropped++
		return false
	}
	key, err := crawler.NormalizeURL(rawURL)
	if err != nil {
		f.stats.Dropped++
		return false
	}
	if _, seen := f.visited[key]; seen {
		f.stats.Duplicates++
		return false
	}
	f.visited[key] = struct{}{}
	f.queue = append(f.queue, Entry{URL: rawURL, Kind: kind, Page: page})
	f.stats.Enqueued++
	switch kind {
	case crawler.PageKindListing:
		f.stats.ListingPages++
	case crawler.PageKindArticle:
		f.stats.ArticlePages++
	}
	return true
}

// MarkVisited records a URL reached through a redirect so it is not fetched
// again under its final address.
func (f *Frontier) MarkVisited(rawURL string) {
	if key, err := crawler.NormalizeURL(rawURL); err == nil {
		f.visited[key] = struct{}{}
	}
}

// Pop returns the oldest pending entry.
func (f *Frontier) Pop() (Entry, bool) {
	if len(f.queue) == 0 {
		return Entry{}, false
	}
	next := f.queue[0]
	f.queue[0] = Entry{}
	f.queue = f.queue[1:]
	return next, true
}

// Len returns the number of pending entries.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// Stats returns a copy of the counters.
func (f *Frontier) Stats() Stats {
	return f.stats
}
