package eventloop

import (
	"sync"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

// Scheduler runs fn once after d unless the handle is cancelled first.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Handle
	Cancel(h Handle)
}

// LoopScheduler fires timers through a Poster. A timer cancelled after it
// fired but before its post ran is still suppressed.
type LoopScheduler struct {
	poster Poster

	mu     sync.Mutex
	next   Handle
	timers map[Handle]*time.Timer
}

func NewLoopScheduler(p Poster) *LoopScheduler {
	return &LoopScheduler{
		poster: p,
		timers: make(map[Handle]*time.Timer),
	}
}

func (s *LoopScheduler) Schedule(d time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := s.next
	s.timers[h] = time.AfterFunc(d, func() {
		posted := s.poster.Post(func() {
			if s.take(h) {
				fn()
			}
		})
		if !posted {
			s.take(h)
		}
	})
	return h
}

func (s *LoopScheduler) take(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[h]; !ok {
		return false
	}
	delete(s.timers, h)
	return true
}

func (s *LoopScheduler) Cancel(h Handle) {
	if h == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[h]; ok {
		t.Stop()
		delete(s.timers, h)
	}
}

// Pending reports how many timers are armed.
func (s *LoopScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
