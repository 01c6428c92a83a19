package detector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

func TestHeuristicShouldPromote(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		h       *Heuristic
		resp    crawler.FetchResponse
		promote bool
	}{
		{
			name:    "empty body",
			h:       NewHeuristic(100),
			resp:    crawler.FetchResponse{StatusCode: 200},
			promote: true,
		},
		{
			name:    "spa marker",
			h:       NewHeuristic(100),
			resp:    crawler.FetchResponse{StatusCode: 200, Body: []byte(`<div id="__next"></div>`)},
			promote: true,
		},
		{
			name:    "script density",
			h:       NewHeuristic(1000),
			resp:    crawler.FetchResponse{StatusCode: 200, Body: []byte(`<html><SCRIPT>var a=1;</SCRIPT><p>t</p></html>`)},
			promote: true,
		},
		{
			name:    "non 200",
			h:       NewHeuristic(100),
			resp:    crawler.FetchResponse{StatusCode: 404, Body: []byte("not found")},
			promote: false,
		},
		{
			name:    "already rendered",
			h:       NewHeuristic(100),
			resp:    crawler.FetchResponse{StatusCode: 200, UsedHeadless: true},
			promote: false,
		},
		{
			name:    "missing required marker",
			h:       NewHeuristic(10, "<H1"),
			resp:    crawler.FetchResponse{StatusCode: 200, Body: []byte(`<html><body><div>loading</div></body></html>`)},
			promote: true,
		},
		{
			name:    "required marker present beats spa marker",
			h:       NewHeuristic(10, "<h1"),
			resp:    crawler.FetchResponse{StatusCode: 200, Body: []byte(`<div id="app"><h1>Title</h1><p>body text</p></div>`)},
			promote: false,
		},
		{
			name:    "plain server rendered page",
			h:       NewHeuristic(10),
			resp:    crawler.FetchResponse{StatusCode: 200, Body: []byte(`<html><body><h1>t</h1><p>enough text here</p></body></html>`)},
			promote: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.promote, tc.h.ShouldPromote(tc.resp))
		})
	}
}

func TestScriptDensityUnclosedTag(t *testing.T) {
	t.Parallel()

	require.True(t, scriptDensityHigh([]byte(`<p>x</p><script src="a.js"`)))
	require.False(t, scriptDensityHigh([]byte(`<p>no scripts at all</p>`)))
	require.False(t, scriptDensityHigh(nil))
}
