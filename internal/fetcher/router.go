// Package fetcher routes fetch requests to the static or rendering backend.
package fetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

// Router implements crawler.Fetcher by picking a backend per request.
// Requests marked RenderRequired go to the rendered backend when one is
// configured; everything else, and render requests without a renderer, use
// the static backend.
type Router struct {
	static   crawler.Fetcher
	rendered crawler.Fetcher
	logger   *zap.Logger
}

// NewRouter builds a Router. rendered may be nil.
func NewRouter(static, rendered crawler.Fetcher, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{static: static, rendered: rendered, logger: logger}
}

// Fetch dispatches the request.
func (r *Router) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if request.RenderRequired {
		if r.rendered != nil {
			return r.rendered.Fetch(ctx, request)
		}
		r.logger.Warn("render requested without headless fetcher; using static fetch",
			zap.String("url", request.URL),
			zap.String("kind", string(request.Kind)),
		)
	}
	return r.static.Fetch(ctx, request)
}
