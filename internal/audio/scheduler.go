package audio

import (
	"sync"
	"time"
)

// Scheduler assigns gap-free, non-overlapping start times to consecutive
// chunks: each chunk starts when the previous one ends, or now if the
// previous one already finished.
type Scheduler struct {
	clock Clock

	mu   sync.Mutex
	next time.Time
}

// NewScheduler creates a scheduler on clock.
func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Schedule reserves d of playback and returns its start time.
func (s *Scheduler) Schedule(d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.clock.Now()
	if s.next.After(start) {
		start = s.next
	}
	s.next = start.Add(d)
	return start
}

// Next is the end of the last scheduled chunk.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Reset forgets scheduled playback; the next chunk starts now.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = time.Time{}
}
