// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxBodyBytes  int
}

// Fetcher implements crawler.Fetcher using the Colly collector. Each fetch
// gets its own collector so concurrent runs never share a transport chain.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	robots    *robotsCache
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
		robots:    newRobotsCache(),
	}
}

// Fetch executes a single HTTP GET using Colly. The response URL is the last
// URL requested after following redirects.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
		status   int
	)
	start := time.Now()
	collector, tracker := f.buildCollector(request, start, &result, &fetchErr, &status)
	collector.Context = ctx

	finished, err := f.runCollector(ctx, collector, request.URL, &fetchErr)
	if err != nil {
		if !finished {
			// The visit may still be unwinding and owns status until it returns.
			return crawler.FetchResponse{}, &crawler.FetchError{URL: request.URL, Err: err}
		}
		return crawler.FetchResponse{}, &crawler.FetchError{URL: request.URL, StatusCode: status, Err: err}
	}
	if final := tracker.last(); final != "" {
		result.URL = final
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
	status *int,
) (*colly.Collector, *finalURLTransport) {
	collector := colly.NewCollector(colly.Async(false))
	if f.cfg.MaxBodyBytes > 0 {
		collector.MaxBodySize = f.cfg.MaxBodyBytes
	}
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	base := f.transport
	if base == nil {
		base = newHTTPTransport()
	}
	if f.cfg.RespectRobots {
		base = &robotsTransport{base: base, cache: f.robots}
	}
	tracker := &finalURLTransport{base: base}
	collector.WithTransport(tracker)

	f.configureCollectorHooks(collector, request, start, result, fetchErr, status)
	return collector, tracker
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
	status *int,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*result = crawler.FetchResponse{
			URL:          r.Request.URL.String(),
			StatusCode:   r.StatusCode,
			Headers:      r.Headers.Clone(),
			Body:         append([]byte(nil), r.Body...),
			Duration:     time.Since(start),
			UsedHeadless: false,
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*status = r.StatusCode
		}
		*fetchErr = err
	})
}

// runCollector reports finished=false when ctx ended before the visit
// returned; the hook outputs must not be read in that case.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) (bool, error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return true, fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return true, fmt.Errorf("colly visit failed: %w", err)
		}
		return true, nil
	}
}

func (f *Fetcher) copyHeaders(request crawler.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

// finalURLTransport remembers the last non-robots URL it carried, which is
// the post-redirect address of the page.
type finalURLTransport struct {
	base http.RoundTripper
	mu   sync.Mutex
	url  string
}

func (t *finalURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req != nil && req.URL != nil && !isRobotsTxtRequest(req) {
		t.mu.Lock()
		t.url = req.URL.String()
		t.mu.Unlock()
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("roundtrip: %w", err)
	}
	return resp, nil
}

func (t *finalURLTransport) last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
