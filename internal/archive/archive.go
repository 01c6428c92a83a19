// Package archive stores the raw HTML of fetched article pages.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/hash/sha256"
)

const defaultContentType = "text/html; charset=utf-8"

// Archiver writes page bodies to a BlobStore under
// <prefix>/<yyyy-mm-dd>/<sha256(url)>.html. Re-archiving a URL on the same
// day overwrites the earlier copy.
type Archiver struct {
	store       crawler.BlobStore
	clock       crawler.Clock
	hasher      *sha256.Hasher
	prefix      string
	contentType string
}

// New builds an Archiver.
func New(store crawler.BlobStore, clock crawler.Clock, prefix string) *Archiver {
	return &Archiver{
		store:       store,
		clock:       clock,
		hasher:      sha256.New(),
		prefix:      strings.Trim(prefix, "/"),
		contentType: defaultContentType,
	}
}

// Path returns the object path for a page URL at the current time.
func (a *Archiver) Path(pageURL string) string {
	day := a.clock.Now().UTC().Format("2006-01-02")
	name := a.hasher.HashString(pageURL) + ".html"
	if a.prefix == "" {
		return day + "/" + name
	}
	return a.prefix + "/" + day + "/" + name
}

// Archive stores body and returns the blob URI.
func (a *Archiver) Archive(ctx context.Context, pageURL string, body []byte) (string, error) {
	uri, err := a.store.PutObject(ctx, a.Path(pageURL), a.contentType, body)
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", pageURL, err)
	}
	return uri, nil
}
