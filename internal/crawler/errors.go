package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrDuplicateSource is returned by stores when an article with the same
	// source URL already exists.
	ErrDuplicateSource = errors.New("article with this source url already exists")
	// ErrDuplicateTag is returned when an explicit tag creation collides.
	ErrDuplicateTag = errors.New("tag already exists")
	// ErrNotFound is returned by query methods for unknown IDs.
	ErrNotFound = errors.New("not found")
	// ErrPageNumber is returned for listing pages whose URL carries no usable
	// page number.
	ErrPageNumber = errors.New("listing page number missing or malformed")
	// ErrQueueFull is returned when no more crawl runs can be queued.
	ErrQueueFull = errors.New("crawl queue is full")
	// ErrRunFinished is returned when canceling a run that already ended.
	ErrRunFinished = errors.New("run already finished")
)

// FetchError reports a network or HTTP failure.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether retrying may help.
func (e *FetchError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode >= 400:
		return false
	}
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// ExtractionError reports a required field missing from an article page.
type ExtractionError struct {
	URL   string
	Field string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: missing %s", e.URL, e.Field)
}

// TagResolutionError reports a tag that could not be resolved or attached.
type TagResolutionError struct {
	Title string
	Err   error
}

func (e *TagResolutionError) Error() string {
	return fmt.Sprintf("resolve tag %q: %v", e.Title, e.Err)
}

func (e *TagResolutionError) Unwrap() error { return e.Err }

// PersistenceError reports a storage failure unrelated to uniqueness.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
