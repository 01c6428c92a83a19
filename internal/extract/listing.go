package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

// ListingParser discovers article links and the next page on archive listings.
type ListingParser struct {
	article   cascadia.Selector
	pageParam string
	maxPages  int
}

// NewListingParser compiles the listing rules.
func NewListingParser(rules ListingRules) (*ListingParser, error) {
	if strings.TrimSpace(rules.ArticleSelector) == "" {
		return nil, fmt.Errorf("listing article selector is required")
	}
	if rules.MaxPages < 1 {
		return nil, fmt.Errorf("listing max pages must be >= 1, got %d", rules.MaxPages)
	}
	sel, err := compile("article link", rules.ArticleSelector)
	if err != nil {
		return nil, err
	}
	param := strings.TrimSpace(rules.PageParam)
	if param == "" {
		param = defaultPageParam
	}
	return &ListingParser{article: sel, pageParam: param, maxPages: rules.MaxPages}, nil
}

// PageNumber reads the page number from the listing URL's query.
func (p *ListingParser) PageNumber(rawURL string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", crawler.ErrPageNumber, err)
	}
	raw := u.Query().Get(p.pageParam)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s has no %q parameter", crawler.ErrPageNumber, rawURL, p.pageParam)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q=%q", crawler.ErrPageNumber, p.pageParam, raw)
	}
	return n, nil
}

// Parse returns the page's article links, oldest-appearing first, and the
// next page URL while the page bound has not been reached.
func (p *ListingParser) Parse(page crawler.Page) (crawler.Listing, error) {
	number, err := p.PageNumber(page.URL)
	if err != nil {
		return crawler.Listing{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return crawler.Listing{}, fmt.Errorf("parse listing html: %w", err)
	}

	var links []string
	doc.FindMatcher(p.article).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved, err := crawler.ResolveURL(page.URL, href)
		if err != nil {
			return
		}
		links = append(links, resolved)
	})
	for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
		links[i], links[j] = links[j], links[i]
	}

	listing := crawler.Listing{PageNumber: number, ArticleURLs: links}
	if number < p.maxPages {
		next, err := p.withPage(page.URL, number+1)
		if err != nil {
			return crawler.Listing{}, err
		}
		listing.NextPageURL = next
		listing.HasNextPage = true
	}
	return listing, nil
}

func (p *ListingParser) withPage(rawURL string, n int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	q := u.Query()
	q.Set(p.pageParam, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
