package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

// ArticleExtractor builds drafts from article pages.
type ArticleExtractor struct {
	title       cascadia.Selector
	content     cascadia.Selector
	block       cascadia.Selector
	tagsRegion  cascadia.Selector
	tagsXPath   *xpath.Expr
	tagLabel    cascadia.Selector
	link        cascadia.Selector
	stopPhrases []string
	sectionEnds []string
}

// NewArticleExtractor compiles the rules. Blank title and label selectors
// default to "h1" and "span".
func NewArticleExtractor(rules ArticleRules) (*ArticleExtractor, error) {
	if strings.TrimSpace(rules.ContentSelector) == "" {
		return nil, fmt.Errorf("article content selector is required")
	}
	if strings.TrimSpace(rules.BlockSelector) == "" {
		return nil, fmt.Errorf("article block selector is required")
	}
	titleSel := rules.TitleSelector
	if strings.TrimSpace(titleSel) == "" {
		titleSel = defaultTitleSelector
	}
	labelSel := rules.TagLabelSelector
	if strings.TrimSpace(labelSel) == "" {
		labelSel = defaultTagLabelSelector
	}

	e := &ArticleExtractor{
		stopPhrases: nonEmpty(rules.StopPhrases),
		sectionEnds: nonEmpty(rules.SectionEndMarkers),
	}
	var err error
	if e.title, err = compile("title", titleSel); err != nil {
		return nil, err
	}
	if e.content, err = compile("content", rules.ContentSelector); err != nil {
		return nil, err
	}
	if e.block, err = compile("block", rules.BlockSelector); err != nil {
		return nil, err
	}
	if e.tagLabel, err = compile("tag label", labelSel); err != nil {
		return nil, err
	}
	if e.link, err = compile("link", "a"); err != nil {
		return nil, err
	}
	switch {
	case strings.TrimSpace(rules.TagsXPath) != "":
		if e.tagsXPath, err = xpath.Compile(rules.TagsXPath); err != nil {
			return nil, fmt.Errorf("compile tags xpath %q: %w", rules.TagsXPath, err)
		}
	case strings.TrimSpace(rules.TagsSelector) != "":
		if e.tagsRegion, err = compile("tags", rules.TagsSelector); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Extract produces a draft from a fetched article page. The page URL must be
// the final post-redirect URL; it becomes the draft's source URL.
func (e *ArticleExtractor) Extract(page crawler.Page) (crawler.ArticleDraft, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return crawler.ArticleDraft{}, fmt.Errorf("parse article html: %w", err)
	}

	title := e.extractTitle(doc)
	if title == "" {
		return crawler.ArticleDraft{}, &crawler.ExtractionError{URL: page.URL, Field: "title"}
	}

	return crawler.ArticleDraft{
		Title:     title,
		Body:      e.extractBody(doc),
		SourceURL: page.URL,
		Tags:      e.extractTags(doc),
	}, nil
}

func (e *ArticleExtractor) extractTitle(doc *goquery.Document) string {
	var title string
	doc.FindMatcher(e.title).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title = strings.TrimSpace(s.Text())
		return title == ""
	})
	return title
}

func (e *ArticleExtractor) extractBody(doc *goquery.Document) string {
	var (
		lines []string
		done  bool
	)
	doc.FindMatcher(e.content).EachWithBreak(func(_ int, container *goquery.Selection) bool {
		container.FindMatcher(e.block).EachWithBreak(func(_ int, block *goquery.Selection) bool {
			text := cleanText(block)
			if containsAny(text, e.stopPhrases) {
				return true
			}
			if containsAny(text, e.sectionEnds) {
				done = true
				return false
			}
			if text != "" {
				lines = append(lines, text)
			}
			return true
		})
		return !done
	})
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (e *ArticleExtractor) extractTags(doc *goquery.Document) []string {
	region := e.tagRegion(doc)
	if region == nil {
		return nil
	}
	var tags []string
	region.FindMatcher(e.link).Each(func(_ int, link *goquery.Selection) {
		label := link.FindMatcher(e.tagLabel).First()
		if label.Length() == 0 {
			return
		}
		if text := strings.TrimSpace(label.Text()); text != "" {
			tags = append(tags, text)
		}
	})
	return tags
}

func (e *ArticleExtractor) tagRegion(doc *goquery.Document) *goquery.Selection {
	switch {
	case e.tagsXPath != nil:
		if len(doc.Nodes) == 0 {
			return nil
		}
		nodes := htmlquery.QuerySelectorAll(doc.Nodes[0], e.tagsXPath)
		if len(nodes) == 0 {
			return nil
		}
		return doc.FindNodes(nodes...)
	case e.tagsRegion != nil:
		return doc.FindMatcher(e.tagsRegion)
	default:
		return nil
	}
}

// cleanText joins the trimmed, non-empty text fragments of a block with
// single spaces.
func cleanText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func compile(name, selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile %s selector %q: %w", name, selector, err)
	}
	return sel, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
