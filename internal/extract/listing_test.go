package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

const listingHTML = `<html><body>
<a class="card" href="/tech/3-newest/">newest</a>
<a class="other" href="/ads/">ad</a>
<a class="card" href="https://www.zoomit.ir/tech/2-middle/">middle</a>
<a class="card">no href</a>
<a class="card" href="/tech/1-oldest/#comments">oldest</a>
</body></html>`

func testListingParser(t *testing.T) *ListingParser {
	t.Helper()
	p, err := NewListingParser(ListingRules{ArticleSelector: "a.card", PageParam: "pageNumber", MaxPages: 5})
	require.NoError(t, err)
	return p
}

func TestListingParserReverseOrderAndNextPage(t *testing.T) {
	t.Parallel()

	p := testListingParser(t)
	listing, err := p.Parse(crawler.Page{
		URL:  "https://www.zoomit.ir/archive/?sort=Newest&pageNumber=1",
		Body: []byte(listingHTML),
	})
	require.NoError(t, err)
	require.Equal(t, 1, listing.PageNumber)
	require.Equal(t, []string{
		"https://www.zoomit.ir/tech/1-oldest/",
		"https://www.zoomit.ir/tech/2-middle/",
		"https://www.zoomit.ir/tech/3-newest/",
	}, listing.ArticleURLs)
	require.True(t, listing.HasNextPage)
	require.Equal(t, "https://www.zoomit.ir/archive/?pageNumber=2&sort=Newest", listing.NextPageURL)
}

func TestListingParserPageBound(t *testing.T) {
	t.Parallel()

	p := testListingParser(t)

	atBound, err := p.Parse(crawler.Page{URL: "https://x.test/archive/?pageNumber=5", Body: []byte(listingHTML)})
	require.NoError(t, err)
	require.False(t, atBound.HasNextPage)
	require.Empty(t, atBound.NextPageURL)
	require.Len(t, atBound.ArticleURLs, 3)

	belowBound, err := p.Parse(crawler.Page{URL: "https://x.test/archive/?pageNumber=4", Body: []byte(listingHTML)})
	require.NoError(t, err)
	require.True(t, belowBound.HasNextPage)
	require.Equal(t, "https://x.test/archive/?pageNumber=5", belowBound.NextPageURL)
}

func TestListingParserPageNumberFailsClosed(t *testing.T) {
	t.Parallel()

	p := testListingParser(t)
	for _, u := range []string{
		"https://x.test/archive/",
		"https://x.test/archive/?pageNumber=abc",
		"https://x.test/archive/?pageNumber=0",
		"https://x.test/archive/?pageNumber=-2",
	} {
		_, err := p.Parse(crawler.Page{URL: u, Body: []byte(listingHTML)})
		require.True(t, errors.Is(err, crawler.ErrPageNumber), "url %s: got %v", u, err)
	}
}

func TestNewListingParserValidation(t *testing.T) {
	t.Parallel()

	_, err := NewListingParser(ListingRules{ArticleSelector: "a", MaxPages: 0})
	require.Error(t, err)
	_, err = NewListingParser(ListingRules{MaxPages: 5})
	require.Error(t, err)

	p, err := NewListingParser(ListingRules{ArticleSelector: "a", MaxPages: 1})
	require.NoError(t, err)
	n, err := p.PageNumber("https://x.test/?pageNumber=3")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
