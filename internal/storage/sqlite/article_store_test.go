package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/crawler/crawlertest"
)

func newTestStore(t *testing.T) *ArticleStore {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "articles.db")},
		&crawlertest.SequenceIDs{},
		crawlertest.NewStepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Path: " "}, &crawlertest.SequenceIDs{}, crawlertest.NewStepClock(time.Now()))
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
}

func TestCreateArticleRejectsDuplicateSource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	created, err := store.CreateArticle(ctx, crawler.NewArticle{Title: "A", Content: "body", SourceURL: "https://x/a", IsPublic: true})
	require.NoError(t, err)
	require.Equal(t, "id-1", created.ID)

	_, err = store.CreateArticle(ctx, crawler.NewArticle{Title: "B", SourceURL: "https://x/a"})
	require.ErrorIs(t, err, crawler.ErrDuplicateSource)

	found, ok, err := store.FindArticleBySourceURL(ctx, "https://x/a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, created.ID, found.ID)
	require.True(t, found.IsPublic)
	require.Equal(t, created.CreatedAt, found.CreatedAt)
	require.Empty(t, found.Tags)

	_, ok, err = store.FindArticleBySourceURL(ctx, "https://x/missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateArticleClampsTitle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	long := strings.Repeat("ب", crawler.MaxTitleRunes+20)
	created, err := store.CreateArticle(ctx, crawler.NewArticle{Title: long, SourceURL: "https://x/long"})
	require.NoError(t, err)

	got, err := store.GetArticle(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.MaxTitleRunes, len([]rune(got.Title)))
}

func TestTagsAreSharedAndOrdered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	article, err := store.CreateArticle(ctx, crawler.NewArticle{Title: "A", SourceURL: "https://x/a"})
	require.NoError(t, err)

	first, err := store.FindOrCreateTag(ctx, "hardware")
	require.NoError(t, err)
	again, err := store.FindOrCreateTag(ctx, "hardware")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	second, err := store.FindOrCreateTag(ctx, "Hardware")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	require.NoError(t, store.AddTagToArticle(ctx, article.ID, first.ID))
	require.NoError(t, store.AddTagToArticle(ctx, article.ID, second.ID))
	require.NoError(t, store.AddTagToArticle(ctx, article.ID, first.ID))

	got, err := store.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 2)
	require.Equal(t, "Hardware", got.Tags[0].Title)
	require.True(t, got.UpdatedAt.After(article.UpdatedAt))

	require.ErrorIs(t, store.AddTagToArticle(ctx, "missing", first.ID), crawler.ErrNotFound)
	require.ErrorIs(t, store.AddTagToArticle(ctx, article.ID, "missing"), crawler.ErrNotFound)

	_, err = store.CreateTag(ctx, "hardware")
	require.ErrorIs(t, err, crawler.ErrDuplicateTag)
}

func TestListArticlesFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	seed := func(title, content, source string, public bool, tags ...string) {
		a, err := store.CreateArticle(ctx, crawler.NewArticle{Title: title, Content: content, SourceURL: source, IsPublic: public})
		require.NoError(t, err)
		for _, title := range tags {
			tag, err := store.FindOrCreateTag(ctx, title)
			require.NoError(t, err)
			require.NoError(t, store.AddTagToArticle(ctx, a.ID, tag.ID))
		}
	}
	seed("Galaxy review", "A phone with a great screen", "https://x/1", true, "mobile", "samsung")
	seed("GPU roundup", "Graphics cards tested", "https://x/2", true, "hardware")
	seed("Hidden draft", "phone leak", "https://x/3", false, "mobile")

	titles := func(filter crawler.ArticleFilter) []string {
		filter.PublicOnly = true
		articles, total, err := store.ListArticles(ctx, filter)
		require.NoError(t, err)
		require.Len(t, articles, total)
		out := make([]string, 0, len(articles))
		for _, a := range articles {
			out = append(out, a.Title)
		}
		return out
	}

	require.Equal(t, []string{"GPU roundup", "Galaxy review"}, titles(crawler.ArticleFilter{}))
	require.Equal(t, []string{"Galaxy review"}, titles(crawler.ArticleFilter{Tags: []string{"mobile", "samsung"}}))
	require.Equal(t, []string{"Galaxy review"}, titles(crawler.ArticleFilter{Keywords: []string{"PHONE"}}))
	require.Equal(t, []string{"GPU roundup"}, titles(crawler.ArticleFilter{Excludes: []string{"screen"}}))
	require.Empty(t, titles(crawler.ArticleFilter{Tags: []string{}}))
	require.Empty(t, titles(crawler.ArticleFilter{Keywords: []string{"nothing-matches"}}))

	page, total, err := store.ListArticles(ctx, crawler.ArticleFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, page, 1)
	require.Equal(t, "GPU roundup", page[0].Title)
	require.Len(t, page[0].Tags, 1)
}

func TestListTagsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	for _, title := range []string{"a", "b", "c"} {
		_, err := store.CreateTag(ctx, title)
		require.NoError(t, err)
	}
	tags, total, err := store.ListTags(ctx, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, tags, 2)
	require.Equal(t, "c", tags[0].Title)

	got, err := store.GetTag(ctx, tags[1].ID)
	require.NoError(t, err)
	require.Equal(t, "b", got.Title)

	_, err = store.GetTag(ctx, "nope")
	require.ErrorIs(t, err, crawler.ErrNotFound)
	_, err = store.GetArticle(ctx, "nope")
	require.ErrorIs(t, err, crawler.ErrNotFound)
}

func TestBuildArticleWhereArgsOrder(t *testing.T) {
	t.Parallel()

	where, args := buildArticleWhere(crawler.ArticleFilter{
		PublicOnly: true,
		Tags:       []string{"a", "b"},
		Keywords:   []string{"k"},
		Excludes:   []string{"x"},
	})
	require.Contains(t, where, "a.is_public = 1")
	require.Contains(t, where, "t.title IN (?, ?)")
	require.Contains(t, where, "NOT (instr")
	require.Equal(t, []any{"a", "b", "k", "k", "x", "x"}, args)

	where, args = buildArticleWhere(crawler.ArticleFilter{})
	require.Empty(t, where)
	require.Nil(t, args)
}
