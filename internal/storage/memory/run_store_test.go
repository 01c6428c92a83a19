package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	ctx := context.Background()
	run := crawler.Run{ID: "run-1", Mode: crawler.RunModeFull, Status: crawler.RunStatusQueued}

	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := store.CreateRun(ctx, run); err == nil {
		t.Fatal("expected duplicate run error")
	}
	if err := store.UpdateRunStatus(ctx, run.ID, crawler.RunStatusRunning, "", crawler.RunCounters{}); err != nil {
		t.Fatalf("UpdateRunStatus running error = %v", err)
	}
	outcome := crawler.Outcome{SourceURL: "https://example.com/a", Status: crawler.OutcomeCreated}
	if err := store.RecordOutcome(ctx, run.ID, outcome); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	outcomes, err := store.ListOutcomes(ctx, run.ID)
	if err != nil || len(outcomes) != 1 {
		t.Fatalf("ListOutcomes() unexpected result: outcomes=%v err=%v", outcomes, err)
	}
	outcomes[0].SourceURL = "modified"
	if store.outcomes[run.ID][0].SourceURL != "https://example.com/a" {
		t.Fatal("expected ListOutcomes to return a copy")
	}

	err = store.UpdateRunStatus(ctx, run.ID, crawler.RunStatusSucceeded, "", crawler.RunCounters{Created: 1})
	if err != nil {
		t.Fatalf("UpdateRunStatus succeeded error = %v", err)
	}
	final, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if final.Status != crawler.RunStatusSucceeded || final.Started == nil || final.Finished == nil {
		t.Fatalf("expected timestamps set, got %+v", final)
	}
	if final.Counters.Created != 1 {
		t.Fatalf("expected counters to persist, got %+v", final)
	}
}

func TestRunStoreUnknownRun(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	ctx := context.Background()
	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.RecordOutcome(ctx, "missing", crawler.Outcome{}); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateRunStatus(ctx, "missing", crawler.RunStatusFailed, "x", crawler.RunCounters{}); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
