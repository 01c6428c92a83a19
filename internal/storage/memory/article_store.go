package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

type tagLink struct {
	tagID string
}

// ArticleStore implements crawler.Repository in memory. It enforces the same
// uniqueness rules as the SQL backends.
type ArticleStore struct {
	mu          sync.RWMutex
	ids         crawler.IDGenerator
	clock       crawler.Clock
	articles    map[string]crawler.Article
	bySource    map[string]string
	tags        map[string]crawler.Tag
	tagsByTitle map[string]string
	links       map[string][]tagLink
}

// NewArticleStore constructs an ArticleStore.
func NewArticleStore(ids crawler.IDGenerator, clock crawler.Clock) *ArticleStore {
	return &ArticleStore{
		ids:         ids,
		clock:       clock,
		articles:    make(map[string]crawler.Article),
		bySource:    make(map[string]string),
		tags:        make(map[string]crawler.Tag),
		tagsByTitle: make(map[string]string),
		links:       make(map[string][]tagLink),
	}
}

// FindArticleBySourceURL looks an article up by its unique source URL.
func (s *ArticleStore) FindArticleBySourceURL(_ context.Context, sourceURL string) (crawler.Article, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySource[sourceURL]
	if !ok {
		return crawler.Article{}, false, nil
	}
	return s.hydrate(s.articles[id]), true, nil
}

// CreateArticle inserts a new article.
func (s *ArticleStore) CreateArticle(_ context.Context, article crawler.NewArticle) (crawler.Article, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.Article{}, fmt.Errorf("article id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySource[article.SourceURL]; exists {
		return crawler.Article{}, crawler.ErrDuplicateSource
	}
	now := s.clock.Now()
	record := crawler.Article{
		ID:        id,
		Title:     crawler.ClampTitle(article.Title),
		Content:   article.Content,
		SourceURL: article.SourceURL,
		IsPublic:  article.IsPublic,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.articles[id] = record
	s.bySource[article.SourceURL] = id
	return s.hydrate(record), nil
}

// FindOrCreateTag returns the tag with the exact title, creating it if needed.
func (s *ArticleStore) FindOrCreateTag(_ context.Context, title string) (crawler.Tag, error) {
	title = crawler.ClampTitle(title)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.tagsByTitle[title]; ok {
		return s.tags[id], nil
	}
	return s.insertTagLocked(title)
}

// CreateTag inserts a tag and fails with ErrDuplicateTag if the title exists.
func (s *ArticleStore) CreateTag(_ context.Context, title string) (crawler.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tagsByTitle[title]; ok {
		return crawler.Tag{}, crawler.ErrDuplicateTag
	}
	return s.insertTagLocked(title)
}

func (s *ArticleStore) insertTagLocked(title string) (crawler.Tag, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.Tag{}, fmt.Errorf("tag id: %w", err)
	}
	tag := crawler.Tag{ID: id, Title: title, CreatedAt: s.clock.Now()}
	s.tags[id] = tag
	s.tagsByTitle[title] = id
	return tag, nil
}

// AddTagToArticle links a tag to an article. Linking twice is a no-op.
func (s *ArticleStore) AddTagToArticle(_ context.Context, articleID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[articleID]
	if !ok {
		return fmt.Errorf("article %s: %w", articleID, crawler.ErrNotFound)
	}
	if _, ok := s.tags[tagID]; !ok {
		return fmt.Errorf("tag %s: %w", tagID, crawler.ErrNotFound)
	}
	for _, link := range s.links[articleID] {
		if link.tagID == tagID {
			return nil
		}
	}
	s.links[articleID] = append(s.links[articleID], tagLink{tagID: tagID})
	article.UpdatedAt = s.clock.Now()
	s.articles[articleID] = article
	return nil
}

// ListArticles returns articles matching the filter, most recently updated
// first, plus the total number of matches.
func (s *ArticleStore) ListArticles(_ context.Context, filter crawler.ArticleFilter) ([]crawler.Article, int, error) {
	if filter.Empty() {
		return []crawler.Article{}, 0, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]crawler.Article, 0, len(s.articles))
	for _, article := range s.articles {
		if filter.PublicOnly && !article.IsPublic {
			continue
		}
		if !s.matches(article, filter) {
			continue
		}
		matches = append(matches, article)
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	total := len(matches)
	limit, offset := crawler.PageWindow(filter.Limit, filter.Offset)
	if offset >= total {
		return []crawler.Article{}, total, nil
	}
	end := min(offset+limit, total)
	out := make([]crawler.Article, 0, end-offset)
	for _, article := range matches[offset:end] {
		out = append(out, s.hydrate(article))
	}
	return out, total, nil
}

func (s *ArticleStore) matches(article crawler.Article, filter crawler.ArticleFilter) bool {
	if filter.Tags != nil && !s.hasAnyTag(article.ID, filter.Tags) {
		return false
	}
	title := strings.ToLower(article.Title)
	content := strings.ToLower(article.Content)
	contains := func(word string) bool {
		w := strings.ToLower(word)
		return strings.Contains(title, w) || strings.Contains(content, w)
	}
	if filter.Keywords != nil {
		found := false
		for _, kw := range filter.Keywords {
			if contains(kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, ex := range filter.Excludes {
		if contains(ex) {
			return false
		}
	}
	return true
}

func (s *ArticleStore) hasAnyTag(articleID string, titles []string) bool {
	for _, link := range s.links[articleID] {
		title := s.tags[link.tagID].Title
		for _, want := range titles {
			if title == want {
				return true
			}
		}
	}
	return false
}

// GetArticle returns an article by ID.
func (s *ArticleStore) GetArticle(_ context.Context, id string) (crawler.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.articles[id]
	if !ok {
		return crawler.Article{}, fmt.Errorf("article %s: %w", id, crawler.ErrNotFound)
	}
	return s.hydrate(article), nil
}

// ListTags returns tags newest first plus the total count.
func (s *ArticleStore) ListTags(_ context.Context, limit, offset int) ([]crawler.Tag, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]crawler.Tag, 0, len(s.tags))
	for _, tag := range s.tags {
		all = append(all, tag)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	limit, offset = crawler.PageWindow(limit, offset)
	if offset >= total {
		return []crawler.Tag{}, total, nil
	}
	end := min(offset+limit, total)
	return append([]crawler.Tag(nil), all[offset:end]...), total, nil
}

// GetTag returns a tag by ID.
func (s *ArticleStore) GetTag(_ context.Context, id string) (crawler.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tag, ok := s.tags[id]
	if !ok {
		return crawler.Tag{}, fmt.Errorf("tag %s: %w", id, crawler.ErrNotFound)
	}
	return tag, nil
}

// Close is a no-op.
func (s *ArticleStore) Close() error { return nil }

// hydrate attaches tags, most recently associated first.
func (s *ArticleStore) hydrate(article crawler.Article) crawler.Article {
	links := s.links[article.ID]
	tags := make([]crawler.Tag, 0, len(links))
	for i := len(links) - 1; i >= 0; i-- {
		tags = append(tags, s.tags[links[i].tagID])
	}
	article.Tags = tags
	return article
}
