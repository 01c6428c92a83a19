// Package extract turns fetched listing and article pages into crawl links
// and article drafts.
package extract

// ArticleRules configures the article page extractor.
type ArticleRules struct {
	TitleSelector     string   `mapstructure:"title_selector"`
	ContentSelector   string   `mapstructure:"content_selector"`
	BlockSelector     string   `mapstructure:"block_selector"`
	StopPhrases       []string `mapstructure:"stop_phrases"`
	SectionEndMarkers []string `mapstructure:"section_end_markers"`
	// TagsXPath locates the tag region. It wins over TagsSelector when set.
	TagsXPath        string `mapstructure:"tags_xpath"`
	TagsSelector     string `mapstructure:"tags_selector"`
	TagLabelSelector string `mapstructure:"tag_label_selector"`
}

// ListingRules configures the archive listing parser.
type ListingRules struct {
	ArticleSelector string `mapstructure:"article_selector"`
	PageParam       string `mapstructure:"page_param"`
	MaxPages        int    `mapstructure:"max_pages"`
}

const (
	defaultTitleSelector    = "h1"
	defaultTagLabelSelector = "span"
	defaultPageParam        = "pageNumber"
)
