// Package main hosts the newscrawler entrypoint.
//
// Architecture overview:
//   - Fetch: a Colly-based static fetcher (with optional robots.txt enforcement) and an optional Chromedp
//     fetcher sit behind a router. Listing and article pages are rendered when configured to be, and the
//     heuristic detector can promote thin static responses to a rendered fetch.
//   - Crawl: the scheduler walks each listing seed page by page, queuing article links ahead of the next
//     listing page in a per-run frontier that drops repeats and off-domain links. Fetches wait on a
//     per-domain token bucket and retry transient errors with jittered backoff.
//   - Ingest: drafts are deduplicated by source URL, stored, and tagged. Tags are shared by title across
//     articles. Newly created articles can be announced on a Pub/Sub topic and raw pages archived to
//     local disk or GCS.
//   - Storage: in-memory, Postgres (pgx) or SQLite; the schema is applied by `migrate` or on startup.
//   - Serve: chi exposes the public article and tag read API plus crawl task endpoints. Crawl tasks run on
//     a bounded queue with a fixed worker pool.
//
// Quick checklist:
//   - Configure via a file passed with --config or NEWSCRAWLER_* env vars (a .env file is read too),
//     e.g. NEWSCRAWLER_STORAGE_BACKEND=sqlite, NEWSCRAWLER_HEADLESS_ENABLED=true.
//   - Run locally: go run . crawl --config config.yaml, or go run . serve.
package main

import (
	"os"

	"github.com/JakeFAU/newsroom-crawler/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
