// Package transport carries protocol dictionaries between the client engine
// and a companion. Every implementation is half-duplex on the outbound side:
// one buffer is open at a time, and a new BeginOutbound replaces an unsent one.
// Inbound dictionaries are delivered through an eventloop.Poster so the
// receiver always runs on its owner's goroutine.
package transport

import (
	"errors"
	"sync"

	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/protocol"
)

var (
	ErrOutboxClosed = errors.New("transport: outbound buffer closed")
	ErrLinkDown     = errors.New("transport: link down")
	ErrClosed       = errors.New("transport: closed")
)

type Transport interface {
	BeginOutbound() (*Outbound, error)
	Write(o *Outbound, f protocol.Field) error
	Send(o *Outbound) error
	SetReceiver(fn func(protocol.Dict))
}

// LinkProbe reports whether the peer is currently reachable.
type LinkProbe interface {
	IsLinkConnected() bool
}

// Outbound is one open outbound buffer.
type Outbound struct {
	dict   protocol.Dict
	closed bool
}

// Dict returns a copy of the fields written so far.
func (o *Outbound) Dict() protocol.Dict {
	return protocol.NewDict(o.dict.Fields()...)
}

type outbox struct {
	mu   sync.Mutex
	open *Outbound
}

func (b *outbox) begin() *Outbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open != nil {
		b.open.closed = true
	}
	b.open = &Outbound{}
	return b.open
}

func (b *outbox) write(o *Outbound, f protocol.Field) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o == nil || o.closed || o != b.open {
		return ErrOutboxClosed
	}
	o.dict.Set(f)
	return nil
}

func (b *outbox) take(o *Outbound) (protocol.Dict, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o == nil || o.closed || o != b.open {
		return protocol.Dict{}, ErrOutboxClosed
	}
	o.closed = true
	b.open = nil
	return o.dict, nil
}

type receiver struct {
	poster eventloop.Poster

	mu sync.RWMutex
	fn func(protocol.Dict)
}

func (r *receiver) SetReceiver(fn func(protocol.Dict)) {
	r.mu.Lock()
	r.fn = fn
	r.mu.Unlock()
}

func (r *receiver) deliver(d protocol.Dict) bool {
	return r.poster.Post(func() {
		r.mu.RLock()
		fn := r.fn
		r.mu.RUnlock()
		if fn != nil {
			fn(d)
		}
	})
}

// SendDict writes every field of d into a fresh buffer and sends it.
func SendDict(t Transport, d protocol.Dict) error {
	o, err := t.BeginOutbound()
	if err != nil {
		return err
	}
	for _, f := range d.Fields() {
		if err := t.Write(o, f); err != nil {
			return err
		}
	}
	return t.Send(o)
}
