package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/crawler/crawlertest"
	"github.com/JakeFAU/newsroom-crawler/internal/storage/memory"
)

func newClock() *crawlertest.StepClock {
	return crawlertest.NewStepClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
}

func newMemoryPipeline() (*Pipeline, *memory.ArticleStore) {
	store := memory.NewArticleStore(&crawlertest.SequenceIDs{}, newClock())
	return New(store, newClock(), Config{}, nil), store
}

func draft(url string, tags ...string) crawler.ArticleDraft {
	return crawler.ArticleDraft{Title: "Title " + url, Body: "body", SourceURL: url, Tags: tags}
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, store := newMemoryPipeline()

	first := p.Ingest(ctx, draft("https://news.example/a", "hardware"))
	require.Equal(t, crawler.OutcomeCreated, first.Status)
	require.NotEmpty(t, first.ArticleID)

	before, err := store.GetArticle(ctx, first.ArticleID)
	require.NoError(t, err)

	second := p.Ingest(ctx, crawler.ArticleDraft{
		Title:     "Changed title",
		Body:      "changed",
		SourceURL: "https://news.example/a",
		Tags:      []string{"other"},
	})
	require.Equal(t, crawler.OutcomeSkipped, second.Status)
	require.Equal(t, crawler.SkipReasonDuplicate, second.Reason)
	require.Equal(t, first.ArticleID, second.ArticleID)

	after, err := store.GetArticle(ctx, first.ArticleID)
	require.NoError(t, err)
	require.Equal(t, before, after)

	_, total, err := store.ListTags(ctx, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total, "skipped drafts must not create tags")
}

func TestIngestCollapsesDuplicateTags(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, store := newMemoryPipeline()

	out := p.Ingest(ctx, draft("https://news.example/a", "a", "a", "b", ""))
	require.Equal(t, crawler.OutcomeCreated, out.Status)
	require.Len(t, out.Tags, 2)
	require.Equal(t, "a", out.Tags[0].Title)
	require.Equal(t, "b", out.Tags[1].Title)

	article, err := store.GetArticle(ctx, out.ArticleID)
	require.NoError(t, err)
	require.Len(t, article.Tags, 2)

	other := p.Ingest(ctx, draft("https://news.example/b", "b"))
	require.Equal(t, crawler.OutcomeCreated, other.Status)
	require.Equal(t, out.Tags[1].ID, other.Tags[0].ID, "same title resolves to one tag")
}

func TestIngestClampsLongTitles(t *testing.T) {
	t.Parallel()

	p, store := newMemoryPipeline()
	long := make([]rune, crawler.MaxTitleRunes+20)
	for i := range long {
		long[i] = 'x'
	}
	out := p.Ingest(context.Background(), crawler.ArticleDraft{Title: string(long), Body: "b", SourceURL: "https://news.example/long"})
	require.Equal(t, crawler.OutcomeCreated, out.Status)
	article, err := store.GetArticle(context.Background(), out.ArticleID)
	require.NoError(t, err)
	require.Len(t, []rune(article.Title), crawler.MaxTitleRunes)
}

// scriptedStore wraps the memory store and injects failures.
type scriptedStore struct {
	*memory.ArticleStore
	findErr   error
	createErr error
	tagErr    map[string]error
	linkErr   error
}

func (s *scriptedStore) FindArticleBySourceURL(ctx context.Context, url string) (crawler.Article, bool, error) {
	if s.findErr != nil {
		return crawler.Article{}, false, s.findErr
	}
	return s.ArticleStore.FindArticleBySourceURL(ctx, url)
}

func (s *scriptedStore) CreateArticle(ctx context.Context, a crawler.NewArticle) (crawler.Article, error) {
	if s.createErr != nil {
		return crawler.Article{}, s.createErr
	}
	return s.ArticleStore.CreateArticle(ctx, a)
}

func (s *scriptedStore) FindOrCreateTag(ctx context.Context, title string) (crawler.Tag, error) {
	if err := s.tagErr[title]; err != nil {
		return crawler.Tag{}, err
	}
	return s.ArticleStore.FindOrCreateTag(ctx, title)
}

func (s *scriptedStore) AddTagToArticle(ctx context.Context, articleID, tagID string) error {
	if s.linkErr != nil {
		return s.linkErr
	}
	return s.ArticleStore.AddTagToArticle(ctx, articleID, tagID)
}

func newScripted() *scriptedStore {
	return &scriptedStore{ArticleStore: memory.NewArticleStore(&crawlertest.SequenceIDs{}, newClock())}
}

func TestIngestKeepsArticleWhenTagFails(t *testing.T) {
	t.Parallel()

	store := newScripted()
	store.tagErr = map[string]error{"broken": errors.New("constraint violated")}
	p := New(store, newClock(), Config{}, nil)

	out := p.Ingest(context.Background(), draft("https://news.example/a", "ok", "broken", "fine"))
	require.Equal(t, crawler.OutcomeCreated, out.Status)
	require.Len(t, out.Tags, 2)
	require.Len(t, out.TagErrors, 1)

	var tagErr *crawler.TagResolutionError
	require.ErrorAs(t, out.TagErrors[0], &tagErr)
	require.Equal(t, "broken", tagErr.Title)

	article, err := store.GetArticle(context.Background(), out.ArticleID)
	require.NoError(t, err)
	require.Len(t, article.Tags, 2)
}

func TestIngestReportsAssociationFailure(t *testing.T) {
	t.Parallel()

	store := newScripted()
	store.linkErr = errors.New("link table locked")
	p := New(store, newClock(), Config{}, nil)

	out := p.Ingest(context.Background(), draft("https://news.example/a", "x"))
	require.Equal(t, crawler.OutcomeCreated, out.Status)
	require.Empty(t, out.Tags)
	require.Len(t, out.TagErrors, 1)
	require.ErrorContains(t, out.TagErrors[0], "associate")
}

func TestIngestLostRaceIsSkipped(t *testing.T) {
	t.Parallel()

	store := newScripted()
	store.createErr = crawler.ErrDuplicateSource
	p := New(store, newClock(), Config{}, nil)

	out := p.Ingest(context.Background(), draft("https://news.example/a", "x"))
	require.Equal(t, crawler.OutcomeSkipped, out.Status)
	require.Equal(t, crawler.SkipReasonDuplicate, out.Reason)
	require.NoError(t, out.Err)
}

func TestIngestStoreFailureIsFailed(t *testing.T) {
	t.Parallel()

	store := newScripted()
	store.findErr = errors.New("connection reset")
	p := New(store, newClock(), Config{}, nil)

	out := p.Ingest(context.Background(), draft("https://news.example/a"))
	require.Equal(t, crawler.OutcomeFailed, out.Status)
	var perr *crawler.PersistenceError
	require.ErrorAs(t, out.Err, &perr)
	require.Equal(t, "find article", perr.Op)

	store.findErr = nil
	store.createErr = errors.New("disk full")
	out = p.Ingest(context.Background(), draft("https://news.example/a"))
	require.Equal(t, crawler.OutcomeFailed, out.Status)
	require.ErrorAs(t, out.Err, &perr)
	require.Equal(t, "create article", perr.Op)
}

func TestIngestRejectsMissingSourceURL(t *testing.T) {
	t.Parallel()

	p, _ := newMemoryPipeline()
	out := p.Ingest(context.Background(), crawler.ArticleDraft{Title: "t", Body: "b"})
	require.Equal(t, crawler.OutcomeFailed, out.Status)
	var extractErr *crawler.ExtractionError
	require.ErrorAs(t, out.Err, &extractErr)
}

func TestIngestConcurrentSameSourceCreatesOnce(t *testing.T) {
	t.Parallel()

	p, store := newMemoryPipeline()
	const workers = 8
	outcomes := make([]crawler.Outcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = p.Ingest(context.Background(), draft("https://news.example/same", "t"))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		switch o.Status {
		case crawler.OutcomeCreated:
			created++
		case crawler.OutcomeSkipped:
		default:
			t.Fatalf("unexpected outcome %+v", o)
		}
	}
	require.Equal(t, 1, created)

	_, total, err := store.ListArticles(context.Background(), crawler.ArticleFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Zero(t, p.locks.size())
}

func TestIngestCanceledContext(t *testing.T) {
	t.Parallel()

	p, _ := newMemoryPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := p.Ingest(ctx, draft("https://news.example/a"))
	require.Equal(t, crawler.OutcomeFailed, out.Status)
	require.ErrorIs(t, out.Err, context.Canceled)
}
