package crawler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestClampTitle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", ClampTitle("short"))

	persian := strings.Repeat("خ", MaxTitleRunes+7)
	clamped := ClampTitle(persian)
	require.Equal(t, MaxTitleRunes, utf8.RuneCountInString(clamped))
	require.True(t, utf8.ValidString(clamped))

	exact := strings.Repeat("a", MaxTitleRunes)
	require.Equal(t, exact, ClampTitle(exact))
}

func TestPageWindow(t *testing.T) {
	t.Parallel()

	limit, offset := PageWindow(0, -3)
	require.Equal(t, DefaultPageSize, limit)
	require.Zero(t, offset)

	limit, offset = PageWindow(MaxPageSize+1, 40)
	require.Equal(t, MaxPageSize, limit)
	require.Equal(t, 40, offset)
}

func TestArticleFilterEmpty(t *testing.T) {
	t.Parallel()

	require.False(t, ArticleFilter{}.Empty())
	require.False(t, ArticleFilter{Tags: []string{"a"}}.Empty())
	require.True(t, ArticleFilter{Keywords: []string{}}.Empty())
	require.True(t, ArticleFilter{Tags: []string{"a"}, Excludes: []string{}}.Empty())
}
