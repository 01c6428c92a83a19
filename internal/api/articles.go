package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := pagination(q)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := crawler.ArticleFilter{
		Tags:       splitList(firstNonEmpty(q.Get("tags"), q.Get("tags_title"))),
		Keywords:   splitList(q.Get("keywords")),
		Excludes:   splitList(q.Get("excludes")),
		PublicOnly: true,
		Limit:      limit,
		Offset:     offset,
	}
	articles, total, err := s.query.ListArticles(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err, "articles not found")
		return
	}
	enc := s.codecs[opList]
	results := make([]any, 0, len(articles))
	for _, a := range articles {
		results = append(results, enc.article(a))
	}
	limit, offset = crawler.PageWindow(limit, offset)
	s.writeJSON(w, http.StatusOK, page{Count: total, Limit: limit, Offset: offset, Results: results})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	article, err := s.query.GetArticle(r.Context(), chi.URLParam(r, "article_id"))
	if err != nil {
		s.writeStoreError(w, err, "article not found")
		return
	}
	if !article.IsPublic {
		s.writeError(w, http.StatusNotFound, "article not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.codecs[opDetail].article(article))
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tags, total, err := s.query.ListTags(r.Context(), limit, offset)
	if err != nil {
		s.writeStoreError(w, err, "tags not found")
		return
	}
	enc := s.codecs[opList]
	results := make([]any, 0, len(tags))
	for _, t := range tags {
		results = append(results, enc.tag(t))
	}
	limit, offset = crawler.PageWindow(limit, offset)
	s.writeJSON(w, http.StatusOK, page{Count: total, Limit: limit, Offset: offset, Results: results})
}

func (s *Server) getTag(w http.ResponseWriter, r *http.Request) {
	tag, err := s.query.GetTag(r.Context(), chi.URLParam(r, "tag_id"))
	if err != nil {
		s.writeStoreError(w, err, "tag not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.codecs[opDetail].tag(tag))
}

func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	title, err := decodeTagInput(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tag, err := s.query.CreateTag(r.Context(), title)
	if errors.Is(err, crawler.ErrDuplicateTag) {
		s.writeError(w, http.StatusConflict, "tag already exists")
		return
	}
	if err != nil {
		s.writeStoreError(w, err, "tag not found")
		return
	}
	s.writeJSON(w, http.StatusCreated, s.codecs[opWrite].tag(tag))
}

// decodeTagInput accepts exactly {"title": "..."}; the title is trimmed and
// must be 1 to 100 characters.
func decodeTagInput(body io.Reader) (string, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(body, 1<<16)).Decode(&raw); err != nil {
		return "", errors.New("invalid JSON")
	}
	for key := range raw {
		if key != "title" {
			return "", fmt.Errorf("invalid input: only title is allowed")
		}
	}
	field, ok := raw["title"]
	if !ok {
		return "", errors.New("title is required")
	}
	var title string
	if err := json.Unmarshal(field, &title); err != nil {
		return "", errors.New("title must be a string")
	}
	title = strings.TrimSpace(title)
	switch n := utf8.RuneCountInString(title); {
	case n == 0:
		return "", errors.New("title may not be blank")
	case n > crawler.MaxTitleRunes:
		return "", fmt.Errorf("title must be at most %d characters", crawler.MaxTitleRunes)
	}
	return title, nil
}

// splitList parses a comma-separated filter value. An absent or empty value
// disables the filter (nil); a value with only separators and blanks yields a
// non-nil empty slice, which matches nothing.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func pagination(q url.Values) (int, int, error) {
	limit, err := intParam(q, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := intParam(q, "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
