// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/articles and /v1/articles/{id} for filtered article reads.
//   - GET, POST /v1/tags and GET /v1/tags/{id}.
//   - POST /v1/crawls, GET and DELETE /v1/crawls/{id} to run crawls.
package api
