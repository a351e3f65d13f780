package transport

import (
	"sync"

	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/protocol"
	"go.uber.org/atomic"
)

// Memory is an in-process transport endpoint. Two endpoints joined with
// Connect deliver to each other; an unconnected endpoint records what it sends.
type Memory struct {
	outbox
	receiver

	connected *atomic.Bool

	mu       sync.Mutex
	peer     *Memory
	beginErr error
	sendErr  error
	sent     []protocol.Dict
}

func NewMemory(p eventloop.Poster) *Memory {
	return &Memory{
		receiver:  receiver{poster: p},
		connected: atomic.NewBool(true),
	}
}

// NewPipe returns two connected endpoints that post inbound work to p.
func NewPipe(p eventloop.Poster) (*Memory, *Memory) {
	a, b := NewMemory(p), NewMemory(p)
	Connect(a, b)
	return a, b
}

func Connect(a, b *Memory) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

func (m *Memory) BeginOutbound() (*Outbound, error) {
	m.mu.Lock()
	err := m.beginErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.begin(), nil
}

func (m *Memory) Write(o *Outbound, f protocol.Field) error {
	return m.write(o, f)
}

func (m *Memory) Send(o *Outbound) error {
	d, err := m.take(o)
	if err != nil {
		return err
	}
	if !m.connected.Load() {
		return ErrLinkDown
	}
	m.mu.Lock()
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, d)
	peer := m.peer
	m.mu.Unlock()

	if peer != nil {
		peer.deliver(d)
	}
	return nil
}

// Inject delivers d to this endpoint's receiver as if a peer had sent it.
func (m *Memory) Inject(d protocol.Dict) bool {
	return m.deliver(d)
}

func (m *Memory) IsLinkConnected() bool { return m.connected.Load() }

func (m *Memory) SetConnected(on bool) { m.connected.Store(on) }

// FailBegin makes BeginOutbound return err until cleared with nil.
func (m *Memory) FailBegin(err error) {
	m.mu.Lock()
	m.beginErr = err
	m.mu.Unlock()
}

// FailSend makes Send return err until cleared with nil.
func (m *Memory) FailSend(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// Sent returns every dictionary this endpoint sent successfully.
func (m *Memory) Sent() []protocol.Dict {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Dict, len(m.sent))
	copy(out, m.sent)
	return out
}
