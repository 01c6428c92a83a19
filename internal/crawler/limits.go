package crawler

import "unicode/utf8"

// MaxTitleRunes bounds article and tag titles.
const MaxTitleRunes = 100

// ClampTitle cuts s to MaxTitleRunes runes.
func ClampTitle(s string) string {
	if utf8.RuneCountInString(s) <= MaxTitleRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxTitleRunes])
}

// Page size bounds for list queries.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageWindow normalizes a limit/offset pair.
func PageWindow(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Empty reports whether the filter asked for a criterion but supplied no
// usable values, which matches nothing.
func (f ArticleFilter) Empty() bool {
	return isEmptyCriterion(f.Tags) || isEmptyCriterion(f.Keywords) || isEmptyCriterion(f.Excludes)
}

func isEmptyCriterion(values []string) bool {
	return values != nil && len(values) == 0
}
