package api

import (
	"time"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

// opKind selects how records are rendered for a request.
type opKind int

const (
	opList opKind = iota
	opDetail
	opWrite
)

// codec renders store records for one kind of operation. Handlers look the
// codec up once per request instead of branching on the HTTP verb.
type codec struct {
	article func(crawler.Article) any
	tag     func(crawler.Tag) any
}

func defaultCodecs() map[opKind]codec {
	return map[opKind]codec{
		opList:   {article: articleSummary, tag: tagSummary},
		opDetail: {article: articleDetail, tag: tagDetail},
		opWrite:  {tag: tagDetail},
	}
}

type tagSummaryView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type tagDetailView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type articleSummaryView struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	SourceURL string           `json:"source_url"`
	IsPublic  bool             `json:"is_public"`
	Tags      []tagSummaryView `json:"tags"`
}

type articleDetailView struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	SourceURL string           `json:"source_url"`
	IsPublic  bool             `json:"is_public"`
	Tags      []tagSummaryView `json:"tags"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func tagSummary(t crawler.Tag) any { return tagSummaryView{ID: t.ID, Title: t.Title} }

func tagDetail(t crawler.Tag) any {
	return tagDetailView{ID: t.ID, Title: t.Title, CreatedAt: t.CreatedAt}
}

func tagViews(tags []crawler.Tag) []tagSummaryView {
	out := make([]tagSummaryView, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagSummaryView{ID: t.ID, Title: t.Title})
	}
	return out
}

func articleSummary(a crawler.Article) any {
	return articleSummaryView{
		ID:        a.ID,
		Title:     a.Title,
		SourceURL: a.SourceURL,
		IsPublic:  a.IsPublic,
		Tags:      tagViews(a.Tags),
	}
}

func articleDetail(a crawler.Article) any {
	return articleDetailView{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		SourceURL: a.SourceURL,
		IsPublic:  a.IsPublic,
		Tags:      tagViews(a.Tags),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// page is the envelope for list responses.
type page struct {
	Count   int   `json:"count"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Results []any `json:"results"`
}
