package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/newsroom-crawler/internal/metrics"
)

// maxRobotsBytes caps how much of a robots.txt is kept.
const maxRobotsBytes = 512 << 10

const allowAllRobots = "User-agent: *\nAllow: /"

var robotsRetryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsEntry is one host's robots.txt as first seen.
type robotsEntry struct {
	status   int
	header   http.Header
	body     []byte
	fallback bool
}

// robotsCache holds robots.txt per scheme and host for the life of a
// Fetcher. Collectors are built per fetch, so colly's own robots map never
// outlives one page.
type robotsCache struct {
	mu      sync.Mutex
	entries map[string]robotsEntry
}

func newRobotsCache() *robotsCache {
	return &robotsCache{entries: make(map[string]robotsEntry)}
}

func (c *robotsCache) get(key string) (robotsEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry, ok
}

func (c *robotsCache) put(key string, entry robotsEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.entries[key] = entry
	}
}

// robotsTransport answers robots.txt requests from the cache, probing the
// site on a miss. Transient probe failures are retried and then recorded as
// allow-all so a flaky robots endpoint does not fail the page behind it.
type robotsTransport struct {
	base    http.RoundTripper
	cache   *robotsCache
	backoff []time.Duration
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("robots transport received nil request")
	}
	if t.cache == nil || !isRobotsTxtRequest(req) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("robots transport base roundtrip: %w", err)
		}
		return resp, nil
	}

	key := robotsKey(req)
	if entry, ok := t.cache.get(key); ok {
		return entry.response(req), nil
	}
	entry, err := t.probe(req)
	if err != nil {
		return nil, err
	}
	t.cache.put(key, entry)
	return entry.response(req), nil
}

func (t *robotsTransport) probe(req *http.Request) (robotsEntry, error) {
	backoff := t.backoff
	if backoff == nil {
		backoff = robotsRetryBackoff
	}
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return readRobots(resp)
		}
		if !isTransientNetError(err) {
			return robotsEntry{}, fmt.Errorf("robots probe: %w", err)
		}
		if attempt >= len(backoff) {
			metrics.ObserveRobotsFallback()
			return robotsEntry{status: http.StatusOK, body: []byte(allowAllRobots), fallback: true}, nil
		}
		if err := sleepWithContext(req.Context(), backoff[attempt]); err != nil {
			return robotsEntry{}, fmt.Errorf("robots probe backoff: %w", err)
		}
	}
}

func readRobots(resp *http.Response) (robotsEntry, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return robotsEntry{}, fmt.Errorf("read robots body: %w", err)
	}
	return robotsEntry{status: resp.StatusCode, header: resp.Header.Clone(), body: body}, nil
}

func (e robotsEntry) response(req *http.Request) *http.Response {
	header := e.header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode:    e.status,
		Status:        fmt.Sprintf("%d %s", e.status, http.StatusText(e.status)),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          io.NopCloser(bytes.NewReader(e.body)),
		ContentLength: int64(len(e.body)),
		Header:        header,
		Request:       req,
	}
}

func robotsKey(req *http.Request) string {
	return strings.ToLower(req.URL.Scheme + "://" + req.URL.Host)
}

func isRobotsTxtRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	return strings.EqualFold(req.URL.Path, "/robots.txt")
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("robots backoff sleep context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
