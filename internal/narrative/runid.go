package narrative

import (
	"fmt"
	"sync"
	"time"
)

// RunIDSource yields run identifiers. Injected so orchestration code can be
// exercised with fixed ids.
type RunIDSource interface {
	Next(now time.Time) string
}

// SeqSource produces hour-minute-sequence run ids like "14-05-1". The
// sequence makes two runs started in the same minute distinguishable.
type SeqSource struct {
	mu  sync.Mutex
	seq int
}

func (s *SeqSource) Next(now time.Time) string {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()
	return fmt.Sprintf("%02d-%02d-%d", now.Hour(), now.Minute(), n)
}

// FixedSource always returns the same run id, for resuming an existing run.
type FixedSource struct {
	ID string
}

func (s FixedSource) Next(time.Time) string { return s.ID }
