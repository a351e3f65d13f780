package eventloop

import (
	"sort"
	"sync"
	"time"
)

type manualEntry struct {
	handle Handle
	due    time.Time
	fn     func()
}

// ManualScheduler is a fake clock. Callbacks run on the goroutine that calls
// Advance, in due order, with ties broken by scheduling order.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	next    Handle
	entries []manualEntry
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{now: time.Unix(0, 0).UTC()}
}

func (s *ManualScheduler) Schedule(d time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d < 0 {
		d = 0
	}
	s.next++
	s.entries = append(s.entries, manualEntry{handle: s.next, due: s.now.Add(d), fn: fn})
	return s.next
}

func (s *ManualScheduler) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.handle == h {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, running every callback that comes due.
// Callbacks scheduled while advancing run too if they fall inside the window.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()
	for {
		e, ok := s.popDue(target)
		if !ok {
			break
		}
		e.fn()
	}
	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

func (s *ManualScheduler) popDue(target time.Time) (manualEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return manualEntry{}, false
	}
	sort.SliceStable(s.entries, func(i, j int) bool {
		if s.entries[i].due.Equal(s.entries[j].due) {
			return s.entries[i].handle < s.entries[j].handle
		}
		return s.entries[i].due.Before(s.entries[j].due)
	})
	e := s.entries[0]
	if e.due.After(target) {
		return manualEntry{}, false
	}
	s.entries = s.entries[1:]
	s.now = e.due
	return e, true
}

func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
