package crawler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(2, 10*time.Millisecond, 40*time.Millisecond)
	cases := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 0, false},
		{"server error", &FetchError{URL: "u", StatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}, 0, true},
		{"rate limited", &FetchError{URL: "u", StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}, 1, true},
		{"attempts exhausted", &FetchError{URL: "u", StatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}, 2, false},
		{"not found", &FetchError{URL: "u", StatusCode: http.StatusNotFound, Err: errors.New("missing")}, 0, false},
		{"canceled", &FetchError{URL: "u", Err: context.Canceled}, 0, false},
		{"timeout", &FetchError{URL: "u", Err: context.DeadlineExceeded}, 0, true},
		{"non fetch error", errors.New("boom"), 0, false},
	}
	for _, tc := range cases {
		if got := p.ShouldRetry(tc.err, tc.attempt); got != tc.want {
			t.Fatalf("%s: ShouldRetry=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestExponentialRetryPolicyBackoffBounded(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 10*time.Millisecond, 40*time.Millisecond)
	for attempt := 0; attempt < 6; attempt++ {
		got := p.Backoff(attempt)
		if got < 0 || got > 40*time.Millisecond {
			t.Fatalf("attempt %d: backoff %v out of bounds", attempt, got)
		}
	}
}
