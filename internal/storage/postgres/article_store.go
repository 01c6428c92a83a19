// Package postgres provides the Postgres-backed article repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/id/uuid"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	maxTagAttempts = 3
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// ArticleStore implements crawler.Repository on Postgres.
type ArticleStore struct {
	pool  pool
	ids   crawler.IDGenerator
	clock crawler.Clock
}

// New connects to Postgres and returns a store.
func New(ctx context.Context, cfg Config, ids crawler.IDGenerator, clock crawler.Clock) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ArticleStore{pool: p, ids: ids, clock: clock}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, ids crawler.IDGenerator, clock crawler.Clock) (*ArticleStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ArticleStore{pool: p, ids: ids, clock: clock}, nil
}

// Migrate creates the schema if it does not exist.
func (s *ArticleStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *ArticleStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

const articleColumns = `a.id::text, a.title, a.content, a.source_url, a.is_public, a.created_at, a.updated_at`

// FindArticleBySourceURL looks an article up by its unique source URL.
func (s *ArticleStore) FindArticleBySourceURL(ctx context.Context, sourceURL string) (crawler.Article, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles a WHERE a.source_url = $1`, sourceURL)
	article, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	now := s.clock.Now()
	row := s.pool.QueryRow(ctx, `
INSERT INTO articles AS a (id, title, content, source_url, is_public, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (source_url) DO NOTHING
RETURNING `+articleColumns,
		id, crawler.ClampTitle(article.Title), article.Content, article.SourceURL, article.IsPublic, now,
	)
	created, err := scanArticle(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows), isPgCode(err, pgUniqueViolation):
		return crawler.Article{}, crawler.ErrDuplicateSource
	case err != nil:
		return crawler.Article{}, fmt.Errorf("insert article: %w", err)
	}
	created.Tags = []crawler.Tag{}
	return created, nil
}

// FindOrCreateTag returns the tag with the exact title, creating it if needed.
// When a concurrent insert wins the conflict after this statement took its
// snapshot, the CTE yields no row and the tag is read back in a new statement.
func (s *ArticleStore) FindOrCreateTag(ctx context.Context, title string) (crawler.Tag, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.Tag{}, fmt.Errorf("tag id: %w", err)
	}
	title = crawler.ClampTitle(title)
	for attempt := 0; attempt < maxTagAttempts; attempt++ {
		tag, err := scanTagRow(s.pool.QueryRow(ctx, `
WITH inserted AS (
	INSERT INTO tags (id, title, created_at) VALUES ($1, $2, $3)
	ON CONFLICT (title) DO NOTHING
	RETURNING id::text, title, created_at
)
SELECT id, title, created_at FROM inserted
UNION ALL
SELECT id::text, title, created_at FROM tags WHERE title = $2
LIMIT 1`, id, title, s.clock.Now()))
		if !errors.Is(err, pgx.ErrNoRows) {
			if err != nil {
				return crawler.Tag{}, fmt.Errorf("find or create tag: %w", err)
			}
			return tag, nil
		}

		tag, err = scanTagRow(s.pool.QueryRow(ctx,
			`SELECT id::text, title, created_at FROM tags WHERE title = $1`, title))
		if !errors.Is(err, pgx.ErrNoRows) {
			if err != nil {
				return crawler.Tag{}, fmt.Errorf("find tag: %w", err)
			}
			return tag, nil
		}
	}
	return crawler.Tag{}, fmt.Errorf("find or create tag %q: %w", title, pgx.ErrNoRows)
}

// CreateTag inserts a tag and fails with crawler.ErrDuplicateTag on collision.
func (s *ArticleStore) CreateTag(ctx context.Context, title string) (crawler.Tag, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.Tag{}, fmt.Errorf("tag id: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO tags (id, title, created_at) VALUES ($1, $2, $3)
ON CONFLICT (title) DO NOTHING
RETURNING id::text, title, created_at`, id, title, s.clock.Now())
	var tag crawler.Tag
	err = row.Scan(&tag.ID, &tag.Title, &tag.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows), isPgCode(err, pgUniqueViolation):
		return crawler.Tag{}, crawler.ErrDuplicateTag
	case err != nil:
		return crawler.Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	return tag, nil
}

// AddTagToArticle links a tag to an article and bumps the article's
// updated_at. Linking twice is a no-op.
func (s *ArticleStore) AddTagToArticle(ctx context.Context, articleID, tagID string) error {
	_, err := s.pool.Exec(ctx, `
WITH link AS (
	INSERT INTO article_tags (article_id, tag_id, added_at) VALUES ($1, $2, $3)
	ON CONFLICT (article_id, tag_id) DO NOTHING
	RETURNING article_id
)
UPDATE articles SET updated_at = $3 WHERE id IN (SELECT article_id FROM link)`,
		articleID, tagID, s.clock.Now(),
	)
	if isPgCode(err, pgForeignKeyViolation) {
		return fmt.Errorf("link %s to %s: %w", tagID, articleID, crawler.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("link tag: %w", err)
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
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM articles a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	limit, offset := crawler.PageWindow(filter.Limit, filter.Offset)
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM articles a%s
ORDER BY a.updated_at DESC, a.created_at DESC, a.id DESC
LIMIT $%d OFFSET $%d`, articleColumns, where, n+1, n+2)
	rows, err := s.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	articles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (crawler.Article, error) {
		return scanArticle(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan articles: %w", err)
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

// buildArticleWhere renders the filter as a WHERE clause with positional
// arguments. Text matching is case-insensitive substring search.
func buildArticleWhere(filter crawler.ArticleFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.PublicOnly {
		clauses = append(clauses, "a.is_public")
	}
	if filter.Tags != nil {
		clauses = append(clauses, `EXISTS (
	SELECT 1 FROM article_tags at JOIN tags t ON t.id = at.tag_id
	WHERE at.article_id = a.id AND t.title = ANY(`+next(filter.Tags)+`::text[]))`)
	}
	textMatch := func(param string) string {
		return `EXISTS (
	SELECT 1 FROM unnest(` + param + `::text[]) AS w(word)
	WHERE strpos(lower(a.title), lower(w.word)) > 0 OR strpos(lower(a.content), lower(w.word)) > 0)`
	}
	if filter.Keywords != nil {
		clauses = append(clauses, textMatch(next(filter.Keywords)))
	}
	if filter.Excludes != nil {
		clauses = append(clauses, "NOT "+textMatch(next(filter.Excludes)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(clauses, "\n  AND "), args
}

// GetArticle returns an article by ID.
func (s *ArticleStore) GetArticle(ctx context.Context, id string) (crawler.Article, error) {
	if !uuid.Valid(id) {
		return crawler.Article{}, fmt.Errorf("article %q: %w", id, crawler.ErrNotFound)
	}
	row := s.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles a WHERE a.id = $1`, id)
	article, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tags`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tags: %w", err)
	}
	limit, offset = crawler.PageWindow(limit, offset)
	rows, err := s.pool.Query(ctx, `
SELECT id::text, title, created_at FROM tags
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list tags: %w", err)
	}
	tags, err := pgx.CollectRows(rows, scanTag)
	if err != nil {
		return nil, 0, fmt.Errorf("scan tags: %w", err)
	}
	return tags, total, nil
}

// GetTag returns a tag by ID.
func (s *ArticleStore) GetTag(ctx context.Context, id string) (crawler.Tag, error) {
	if !uuid.Valid(id) {
		return crawler.Tag{}, fmt.Errorf("tag %q: %w", id, crawler.ErrNotFound)
	}
	var tag crawler.Tag
	err := s.pool.QueryRow(ctx, `SELECT id::text, title, created_at FROM tags WHERE id = $1`, id).
		Scan(&tag.ID, &tag.Title, &tag.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Tag{}, fmt.Errorf("tag %s: %w", id, crawler.ErrNotFound)
	}
	if err != nil {
		return crawler.Tag{}, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// attachTags loads tag sets for the given articles in one query, most
// recently associated first.
func (s *ArticleStore) attachTags(ctx context.Context, articles []*crawler.Article) error {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]string, 0, len(articles))
	byID := make(map[string]*crawler.Article, len(articles))
	for _, a := range articles {
		a.Tags = []crawler.Tag{}
		ids = append(ids, a.ID)
		byID[a.ID] = a
	}
	rows, err := s.pool.Query(ctx, `
SELECT at.article_id::text, t.id::text, t.title, t.created_at
FROM article_tags at JOIN tags t ON t.id = at.tag_id
WHERE at.article_id = ANY($1::uuid[])
ORDER BY at.added_at DESC, t.title`, ids)
	if err != nil {
		return fmt.Errorf("load article tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			articleID string
			tag       crawler.Tag
		)
		if err := rows.Scan(&articleID, &tag.ID, &tag.Title, &tag.CreatedAt); err != nil {
			return fmt.Errorf("scan article tag: %w", err)
		}
		if a, ok := byID[articleID]; ok {
			a.Tags = append(a.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate article tags: %w", err)
	}
	return nil
}

func scanArticle(row pgx.Row) (crawler.Article, error) {
	var a crawler.Article
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.SourceURL, &a.IsPublic, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanTag(row pgx.CollectableRow) (crawler.Tag, error) {
	return scanTagRow(row)
}

func scanTagRow(row pgx.Row) (crawler.Tag, error) {
	var t crawler.Tag
	err := row.Scan(&t.ID, &t.Title, &t.CreatedAt)
	return t, err
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
