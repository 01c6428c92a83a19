package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	l := New(Config{
		DefaultRPS:   10, // 10 requests per second = 100ms interval
		DefaultBurst: 1,
	})
	ctx := context.Background()

	// Consume initial token
	if err := l.Wait(ctx, "https://test.com"); err != nil {
		t.Fatal(err)
	}

	// Next one should wait ~100ms
	start := time.Now()
	if err := l.Wait(ctx, "https://test.com/other"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentDomains(t *testing.T) {
	l := New(Config{
		DefaultRPS:   1, // 1 RPS = 1s interval
		DefaultBurst: 1,
	})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}

	// Domain B should not be blocked by A
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("domain B blocked unexpectedly")
	}
}

func TestLimiter_HostIsCaseInsensitive(t *testing.T) {
	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	if err := l.Wait(context.Background(), "https://Example.com/a"); err != nil {
		t.Fatal(err)
	}
	if len(l.limiters) != 1 {
		t.Fatalf("expected one limiter, got %d", len(l.limiters))
	}
	if _, ok := l.limiters["example.com"]; !ok {
		t.Fatalf("expected lowercase host key, got %v", l.limiters)
	}
}

func TestLimiter_CanceledContext(t *testing.T) {
	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	if err := l.Wait(context.Background(), "https://slow.com"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://slow.com")
	if err == nil {
		t.Fatal("expected wait to fail")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("expected deadline or rate error, got %v", err)
	}
}

func TestLimiter_UnlimitedWhenRateNotPositive(t *testing.T) {
	l := New(Config{})
	start := time.Now()
	for i := 0; i < 20; i++ {
		if err := l.Wait(context.Background(), "https://fast.com"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("unlimited limiter should not block")
	}
}
