package frontier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

func TestFrontierFIFOAndDedup(t *testing.T) {
	t.Parallel()

	f := New(crawler.NewDomainAllowlist([]string{"zoomit.ir"}))

	require.True(t, f.Push("https://www.zoomit.ir/archive/?pageNumber=1", crawler.PageKindListing, 0))
	require.True(t, f.Push("https://www.zoomit.ir/a/", crawler.PageKindArticle, 1))
	require.False(t, f.Push("https://WWW.zoomit.ir/a/#frag", crawler.PageKindArticle, 1), "normalized duplicate")
	require.False(t, f.Push("https://evil.example/a/", crawler.PageKindArticle, 1), "off allowlist")
	require.False(t, f.Push("::not a url", crawler.PageKindArticle, 1))
	require.True(t, f.Push("https://www.zoomit.ir/b/", crawler.PageKindArticle, 1))
	require.Equal(t, 3, f.Len())

	first, ok := f.Pop()
	require.True(t, ok)
	require.Equal(t, crawler.PageKindListing, first.Kind)
	second, _ := f.Pop()
	require.Equal(t, "https://www.zoomit.ir/a/", second.URL)
	third, _ := f.Pop()
	require.Equal(t, "https://www.zoomit.ir/b/", third.URL)
	_, ok = f.Pop()
	require.False(t, ok)

	stats := f.Stats()
	require.Equal(t, 3, stats.Enqueued)
	require.Equal(t, 1, stats.Duplicates)
	require.Equal(t, 2, stats.Dropped)
	require.Equal(t, 1, stats.ListingPages)
	require.Equal(t, 2, stats.ArticlePages)
}

func TestFrontierMarkVisited(t *testing.T) {
	t.Parallel()

	f := New(nil)
	f.MarkVisited("https://news.test/final/")
	require.False(t, f.Push("https://news.test/final/", crawler.PageKindArticle, 0))
	require.True(t, f.Push("https://news.test/other/", crawler.PageKindArticle, 0))
}
