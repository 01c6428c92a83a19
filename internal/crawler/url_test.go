package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	got, err := NormalizeURL("HTTPS://WWW.Zoomit.IR:443/archive/?sort=Newest&pageNumber=2#top")
	require.NoError(t, err)
	require.Equal(t, "https://www.zoomit.ir/archive/?pageNumber=2&sort=Newest", got)

	_, err = NormalizeURL("/relative/path")
	require.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	got, err := ResolveURL("https://www.zoomit.ir/archive/?pageNumber=1", "/tech/123-phone/#comments")
	require.NoError(t, err)
	require.Equal(t, "https://www.zoomit.ir/tech/123-phone/", got)

	got, err = ResolveURL("https://www.zoomit.ir/archive/", "https://other.example/a")
	require.NoError(t, err)
	require.Equal(t, "https://other.example/a", got)

	_, err = ResolveURL("https://www.zoomit.ir/", "  ")
	require.Error(t, err)
}
