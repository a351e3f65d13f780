// Package eventloop serializes callbacks onto a single goroutine. Timers,
// transport receive callbacks and caller requests all funnel through a Loop
// so the state they touch never needs its own lock.
package eventloop

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
)

var (
	ErrStopped        = errors.New("eventloop: stopped")
	ErrAlreadyRunning = errors.New("eventloop: already running")
)

// Poster accepts work for later execution on the owning goroutine.
type Poster interface {
	Post(fn func()) bool
}

// Inline runs posted work immediately on the calling goroutine. Useful for
// tests that drive everything from one goroutine.
type Inline struct{}

func (Inline) Post(fn func()) bool {
	fn()
	return true
}

type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	running *atomic.Bool
	stopped *atomic.Bool
}

func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		running: atomic.NewBool(false),
		stopped: atomic.NewBool(false),
	}
}

// Post queues fn. It returns false once the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil || l.stopped.Load() {
		return false
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes queued work until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.done)
	for {
		l.drain()
		select {
		case <-ctx.Done():
			l.stopped.Store(true)
			return ctx.Err()
		case <-l.quit:
			return nil
		case <-l.wake:
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

// Stop ends Run after the work already executing. Queued work is dropped.
func (l *Loop) Stop() {
	l.once.Do(func() {
		l.stopped.Store(true)
		close(l.quit)
	})
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(finished)
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
	case <-l.done:
	}
	select {
	case <-finished:
		return nil
	default:
		return ErrStopped
	}
}
