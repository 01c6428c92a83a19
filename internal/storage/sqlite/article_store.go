// Package sqlite provides a single-file article repository on SQLite
// (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// Config locates the database file. ":memory:" is accepted for tests.
type Config struct {
	Path string
}

// ArticleStore implements crawler.Repository on SQLite. It holds a single
// connection, which serializes writers and keeps ":memory:" databases alive.
type ArticleStore struct {
	db    *sql.DB
	ids   crawler.IDGenerator
	clock crawler.Clock
}

// Open opens (or creates) the database and applies connection pragmas.
func Open(ctx context.Context, cfg Config, ids crawler.IDGenerator, clock crawler.Clock) (*ArticleStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("storage.sqlite.path is required")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return &ArticleStore{db: db, ids: ids, clock: clock}, nil
}

// Migrate creates the schema if it does not exist.
func (s *ArticleStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Ping checks the database handle.
func (s *ArticleStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *ArticleStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

const articleColumns = `a.id, a.title, a.content, a.source_url, a.is_public, a.created_at, a.updated_at`

// FindArticleBySourceURL looks an article up by its unique source URL.
func (s *ArticleStore) FindArticleBySourceURL(ctx context.Context, sourceURL string) (crawler.Article, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles a WHERE a.source_url = ?`, sourceURL)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.Article{}, false, nil
	}
	if err != nil {
		return crawler.Article{}, false, fmt.Errorf("find article by source: %w", err)
	}
	if err := s.attachTags(ctx, []*crawler.Article{&article}); err != nil {
		return crawler.Article{}, false, err
	}
	return article, true, nil
}

// CreateArticle inserts a new article. A source URL collision yields
// crawler.ErrDuplicateSource.
func (s *ArticleStore) CreateArticle(ctx context.Context, article crawler.NewArticle) (crawler.Article, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.Article{}, fmt.Errorf("article id: %w", err)
	}
	now := s.clock.Now().UTC()
	created := crawler.Article{
		ID:        id,
		Title:     crawler.ClampTitle(article.Title),
		Content:   article.Content,
		SourceURL: article.SourceURL,
		IsPublic:  article.IsPublic,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      []crawler.Tag{},
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO articles (id, title, content, source_url, is_public, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source_url) DO NOTHING`,
		created.ID, created.Title, created.Content, created.SourceURL, created.IsPublic,
		now.UnixMicro(), now.UnixMicro(),
	)
	if err != nil {
		return crawler.Article{}, fmt.Errorf("insert article: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return crawler.Article{}, fmt.Errorf("insert article: %w", err)
	} else if n == 0 {
		return crawler.Article{}, crawler.ErrDuplicateSource
	}
	created.CreatedAt = fromMicros(now.UnixMicro())
	created.UpdatedAt = created.CreatedAt
	return created, nil
}

// FindOrCreateTag returns the tag with the exact title, creating it if needed.
func (s *ArticleStore) FindOrCreateTag(ctx context.Context, title string) (crawler.Tag, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.Tag{}, fmt.Errorf("tag id: %w", err)
	}
	title = crawler.ClampTitle(title)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, title, created_at) VALUES (?, ?, ?) ON CONFLICT (title) DO NOTHING`,
		id, title, s.clock.Now().UnixMicro(),
	); err != nil {
		return crawler.Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	tag, err := scanTag(s.db.QueryRowContext(ctx, `SELECT id, title, created_at FROM tags WHERE title = ?`, title))
	if err != nil {
		return crawler.Tag{}, fmt.Errorf("find tag: %w", err)
	}
	return tag, nil
}

// CreateTag inserts a tag and fails with crawler.ErrDuplicateTag on collision.
func (s *ArticleStore) CreateTag(ctx context.Context, title string) (crawler.Tag, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.Tag{}, fmt.Errorf("tag id: %w", err)
	}
	now := s.clock.Now().UnixMicro()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, title, created_at) VALUES (?, ?, ?) ON CONFLICT (title) DO NOTHING`,
		id, title, now,
	)
	if err != nil {
		return crawler.Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return crawler.Tag{}, fmt.Errorf("insert tag: %w", err)
	} else if n == 0 {
		return crawler.Tag{}, crawler.ErrDuplicateTag
	}
	return crawler.Tag{ID: id, Title: title, CreatedAt: fromMicros(now)}, nil
}

// AddTagToArticle links a tag to an article and bumps the article's
// updated_at. Linking twice is a no-op.
func (s *ArticleStore) AddTagToArticle(ctx context.Context, articleID, tagID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, check := range []struct{ table, id string }{{"articles", articleID}, {"tags", tagID}} {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+check.table+` WHERE id = ?`, check.id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", strings.TrimSuffix(check.table, "s"), check.id, crawler.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lookup %s: %w", check.table, err)
		}
	}

	now := s.clock.Now().UnixMicro()
	res, err := tx.ExecContext(ctx, `
INSERT INTO article_tags (article_id, tag_id, added_at, seq)
VALUES (?, ?, ?, (SELECT coalesce(max(seq), 0) + 1 FROM article_tags))
ON CONFLICT (article_id, tag_id) DO NOTHING`, articleID, tagID, now)
	if err != nil {
		return fmt.Errorf("link tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link tag: %w", err)
	}
	if n > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE articles SET updated_at = ? WHERE id = ?`, now, articleID); err != nil {
			return fmt.Errorf("touch article: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit link: %w", err)
	}
	return nil
}

// ListArticles returns matching articles, most recently updated first, and
// the total number of matches.
func (s *ArticleStore) ListArticles(ctx context.Context, filter crawler.ArticleFilter) ([]crawler.Article, int, error) {
	if filter.Empty() {
		return []crawler.Article{}, 0, nil
	}
	where, args := buildArticleWhere(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM articles a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	limit, offset := crawler.PageWindow(filter.Limit, filter.Offset)
	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles a`+where+`
ORDER BY a.updated_at DESC, a.created_at DESC, a.id DESC
LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := []crawler.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate articles: %w", err)
	}

	ptrs := make([]*crawler.Article, len(articles))
	for i := range articles {
		ptrs[i] = &articles[i]
	}
	if err := s.attachTags(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// buildArticleWhere renders the filter as a WHERE clause. SQLite's lower()
// folds ASCII only.
func buildArticleWhere(filter crawler.ArticleFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.PublicOnly {
		clauses = append(clauses, "a.is_public = 1")
	}
	if filter.Tags != nil {
		for _, t := range filter.Tags {
			args = append(args, t)
		}
		clauses = append(clauses, `EXISTS (
	SELECT 1 FROM article_tags at JOIN tags t ON t.id = at.tag_id
	WHERE at.article_id = a.id AND t.title IN (`+placeholders(len(filter.Tags))+`))`)
	}
	textMatch := func(words []string) string {
		parts := make([]string, 0, len(words))
		for _, w := range words {
			args = append(args, w, w)
			parts = append(parts, "instr(lower(a.title), lower(?)) > 0 OR instr(lower(a.content), lower(?)) > 0")
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	}
	if filter.Keywords != nil {
		clauses = append(clauses, textMatch(filter.Keywords))
	}
	if filter.Excludes != nil {
		clauses = append(clauses, "NOT "+textMatch(filter.Excludes))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(clauses, "\n  AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// GetArticle returns an article by ID.
func (s *ArticleStore) GetArticle(ctx context.Context, id string) (crawler.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles a WHERE a.id = ?`, id)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.Article{}, fmt.Errorf("article %s: %w", id, crawler.ErrNotFound)
	}
	if err != nil {
		return crawler.Article{}, fmt.Errorf("get article: %w", err)
	}
	if err := s.attachTags(ctx, []*crawler.Article{&article}); err != nil {
		return crawler.Article{}, err
	}
	return article, nil
}

// ListTags returns tags newest first plus the total count.
func (s *ArticleStore) ListTags(ctx context.Context, limit, offset int) ([]crawler.Tag, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM tags`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tags: %w", err)
	}
	limit, offset = crawler.PageWindow(limit, offset)
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, created_at FROM tags
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list tags: %w", err)
	}
	defer func() { _ = rows.Close() }()
	tags := []crawler.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, total, nil
}

// GetTag returns a tag by ID.
func (s *ArticleStore) GetTag(ctx context.Context, id string) (crawler.Tag, error) {
	tag, err := scanTag(s.db.QueryRowContext(ctx, `SELECT id, title, created_at FROM tags WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.Tag{}, fmt.Errorf("tag %s: %w", id, crawler.ErrNotFound)
	}
	if err != nil {
		return crawler.Tag{}, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

func (s *ArticleStore) attachTags(ctx context.Context, articles []*crawler.Article) error {
	if len(articles) == 0 {
		return nil
	}
	args := make([]any, 0, len(articles))
	byID := make(map[string]*crawler.Article, len(articles))
	for _, a := range articles {
		a.Tags = []crawler.Tag{}
		args = append(args, a.ID)
		byID[a.ID] = a
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT at.article_id, t.id, t.title, t.created_at
FROM article_tags at JOIN tags t ON t.id = at.tag_id
WHERE at.article_id IN (`+placeholders(len(args))+`)
ORDER BY at.added_at DESC, at.seq DESC`, args...)
	if err != nil {
		return fmt.Errorf("load article tags: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			articleID string
			tag       crawler.Tag
			created   int64
		)
		if err := rows.Scan(&articleID, &tag.ID, &tag.Title, &created); err != nil {
			return fmt.Errorf("scan article tag: %w", err)
		}
		tag.CreatedAt = fromMicros(created)
		if a, ok := byID[articleID]; ok {
			a.Tags = append(a.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate article tags: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (crawler.Article, error) {
	var (
		a                crawler.Article
		created, updated int64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Content, &a.SourceURL, &a.IsPublic, &created, &updated); err != nil {
		return crawler.Article{}, err
	}
	a.CreatedAt = fromMicros(created)
	a.UpdatedAt = fromMicros(updated)
	return a, nil
}

func scanTag(row scanner) (crawler.Tag, error) {
	var (
		t       crawler.Tag
		created int64
	)
	if err := row.Scan(&t.ID, &t.Title, &created); err != nil {
		return crawler.Tag{}, err
	}
	t.CreatedAt = fromMicros(created)
	return t, nil
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
