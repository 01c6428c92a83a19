// Package crawlertest provides deterministic collaborators for tests.
package crawlertest

import (
	"fmt"
	"sync"
	"time"
)

// SequenceIDs returns prefix-1, prefix-2, ...
type SequenceIDs struct {
	mu     sync.Mutex
	Prefix string
	n      int
}

// NewID returns the next ID in the sequence.
func (s *SequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	prefix := s.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s-%d", prefix, s.n), nil
}

// StepClock advances by Step on every call to Now.
type StepClock struct {
	mu   sync.Mutex
	Next time.Time
	Step time.Duration
}

// NewStepClock starts at start and advances one second per call.
func NewStepClock(start time.Time) *StepClock {
	return &StepClock{Next: start, Step: time.Second}
}

// Now returns the current tick and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.Next
	c.Next = c.Next.Add(c.Step)
	return now
}
