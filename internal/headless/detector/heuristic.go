// Package detector decides when a statically fetched page has to be fetched
// again through the headless browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

// Heuristic promotes pages that look like an unrendered client-side shell.
type Heuristic struct {
	BodyLengthThreshold int
	// RequiredMarkers are substrings a rendered article always contains. A
	// 200 response carrying none of them is promoted. Empty disables the check.
	RequiredMarkers [][]byte
}

// NewHeuristic creates a detector. threshold defaults to 2048 bytes.
func NewHeuristic(threshold int, requiredMarkers ...string) *Heuristic {
	if threshold <= 0 {
		threshold = 2048
	}
	h := &Heuristic{BodyLengthThreshold: threshold}
	for _, m := range requiredMarkers {
		if m = strings.TrimSpace(m); m != "" {
			h.RequiredMarkers = append(h.RequiredMarkers, []byte(strings.ToLower(m)))
		}
	}
	return h
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// ShouldPromote reports whether resp needs a rendered fetch.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK || resp.UsedHeadless {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(lower) {
		return true
	}
	if len(h.RequiredMarkers) > 0 && !containsAny(lower, h.RequiredMarkers) {
		return true
	}
	if containsAny(body, spaMarkers) {
		// A server-rendered page can still mount a client app; only promote
		// when the content we need is missing.
		return len(h.RequiredMarkers) == 0
	}
	return false
}

func containsAny(body []byte, markers [][]byte) bool {
	for _, marker := range markers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh expects a lower-cased document.
func scriptDensityHigh(lower []byte) bool {
	total := len(lower)
	if total == 0 {
		return false
	}

	openTag := []byte("<script")
	closeTag := []byte("</script>")
	coverage := 0
	pos := 0
	for {
		rel := bytes.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagClose := bytes.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Malformed tag: the rest of the document counts as script.
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1
		next := total
		if end := bytes.Index(lower[contentStart:], closeTag); end != -1 {
			next = contentStart + end + len(closeTag)
		}
		coverage += next - start
		pos = next
	}
	return coverage*100/total >= 25
}
