package transport

import (
	"context"
	"sync"
	"time"

	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/protocol"
	"github.com/danmuck/dashlink/internal/protocol/tlv"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const wsWriteTimeout = 10 * time.Second

// WebSocket sends each dictionary as one binary frame of TLV fields.
type WebSocket struct {
	outbox
	receiver

	conn      *websocket.Conn
	log       zerolog.Logger
	connected *atomic.Bool

	writeMu   sync.Mutex
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// DialWebSocket connects to a companion endpoint and starts reading.
func DialWebSocket(ctx context.Context, url string, p eventloop.Poster, log zerolog.Logger) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	ws := NewWebSocket(conn, p, log)
	ws.Start()
	return ws, nil
}

// NewWebSocket wraps an established connection. Call Start to begin reading.
func NewWebSocket(conn *websocket.Conn, p eventloop.Poster, log zerolog.Logger) *WebSocket {
	return &WebSocket{
		receiver:  receiver{poster: p},
		conn:      conn,
		log:       log.With().Str("transport", "websocket").Str("remote", conn.RemoteAddr().String()).Logger(),
		connected: atomic.NewBool(true),
		done:      make(chan struct{}),
	}
}

func (w *WebSocket) Start() {
	w.startOnce.Do(func() { go w.readLoop() })
}

func (w *WebSocket) readLoop() {
	defer close(w.done)
	defer w.connected.Store(false)
	for {
		kind, msg, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.log.Warn().Err(err).Msg("read failed")
			} else {
				w.log.Debug().Err(err).Msg("connection closed")
			}
			return
		}
		if kind != websocket.BinaryMessage {
			w.log.Warn().Int("type", kind).Msg("dropping non-binary frame")
			continue
		}
		d, err := tlv.DecodeDict(msg)
		if err != nil {
			w.log.Warn().Err(err).Int("bytes", len(msg)).Msg("dropping undecodable frame")
			continue
		}
		if !w.deliver(d) {
			return
		}
	}
}

func (w *WebSocket) BeginOutbound() (*Outbound, error) {
	if !w.connected.Load() {
		return nil, ErrLinkDown
	}
	return w.begin(), nil
}

func (w *WebSocket) Write(o *Outbound, f protocol.Field) error {
	return w.write(o, f)
}

func (w *WebSocket) Send(o *Outbound) error {
	d, err := w.take(o)
	if err != nil {
		return err
	}
	payload, err := tlv.EncodeDict(d)
	if err != nil {
		return err
	}
	if !w.connected.Load() {
		return ErrLinkDown
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (w *WebSocket) IsLinkConnected() bool { return w.connected.Load() }

// Done is closed when the read loop exits.
func (w *WebSocket) Done() <-chan struct{} { return w.done }

func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.connected.Store(false)
		w.writeMu.Lock()
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}
