package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
)

// RunStore keeps crawl runs and their outcomes in memory. Runs are process
// local; a restart forgets them.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[string]crawler.Run
	outcomes map[string][]crawler.Outcome
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:     make(map[string]crawler.Run),
		outcomes: make(map[string][]crawler.Outcome),
	}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run crawler.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	run.Seeds = append([]string(nil), run.Seeds...)
	s.runs[run.ID] = run
	return nil
}

// UpdateRunStatus updates the status and counters for a run. Started is set on
// the first transition to running, Finished on any terminal status.
func (s *RunStore) UpdateRunStatus(
	_ context.Context,
	runID string,
	status crawler.RunStatus,
	errText string,
	counters crawler.RunCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, crawler.ErrNotFound)
	}
	run.Status = status
	run.ErrorText = errText
	run.Counters = counters
	now := time.Now().UTC()
	if status == crawler.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(now)
	}
	if status.Terminal() {
		run.Finished = pointerTime(now)
	}
	s.runs[runID] = run
	return nil
}

// RecordOutcome appends an outcome to a run.
func (s *RunStore) RecordOutcome(_ context.Context, runID string, outcome crawler.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("run %s: %w", runID, crawler.ErrNotFound)
	}
	s.outcomes[runID] = append(s.outcomes[runID], outcome)
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (crawler.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return crawler.Run{}, fmt.Errorf("run %s: %w", runID, crawler.ErrNotFound)
	}
	run.Seeds = append([]string(nil), run.Seeds...)
	return run, nil
}

// ListOutcomes returns the outcomes recorded for a run, oldest first.
func (s *RunStore) ListOutcomes(_ context.Context, runID string) ([]crawler.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("run %s: %w", runID, crawler.ErrNotFound)
	}
	outcomes := s.outcomes[runID]
	out := make([]crawler.Outcome, len(outcomes))
	copy(out, outcomes)
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
