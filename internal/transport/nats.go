package transport

import (
	"strings"

	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/protocol"
	"github.com/danmuck/dashlink/internal/protocol/tlv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATS publishes TLV payloads on one subject and receives on another.
type NATS struct {
	outbox
	receiver

	nc  *nats.Conn
	pub string
	sub *nats.Subscription
	log zerolog.Logger
}

func NewNATS(nc *nats.Conn, pub, sub string, p eventloop.Poster, log zerolog.Logger) (*NATS, error) {
	n := &NATS{
		receiver: receiver{poster: p},
		nc:       nc,
		pub:      pub,
		log:      log.With().Str("transport", "nats").Str("pub", pub).Str("sub", sub).Logger(),
	}
	s, err := nc.Subscribe(sub, n.onMsg)
	if err != nil {
		return nil, err
	}
	n.sub = s
	return n, nil
}

func (n *NATS) onMsg(msg *nats.Msg) {
	d, err := tlv.DecodeDict(msg.Data)
	if err != nil {
		n.log.Warn().Err(err).Int("bytes", len(msg.Data)).Msg("dropping undecodable message")
		return
	}
	n.deliver(d)
}

func (n *NATS) BeginOutbound() (*Outbound, error) {
	if !n.nc.IsConnected() {
		return nil, ErrLinkDown
	}
	return n.begin(), nil
}

func (n *NATS) Write(o *Outbound, f protocol.Field) error {
	return n.write(o, f)
}

func (n *NATS) Send(o *Outbound) error {
	d, err := n.take(o)
	if err != nil {
		return err
	}
	payload, err := tlv.EncodeDict(d)
	if err != nil {
		return err
	}
	if !n.nc.IsConnected() {
		return ErrLinkDown
	}
	return n.nc.Publish(n.pub, payload)
}

func (n *NATS) IsLinkConnected() bool { return n.nc.IsConnected() }

func (n *NATS) Close() error {
	if n.sub == nil {
		return nil
	}
	return n.sub.Unsubscribe()
}

// ClientSubjects returns the publish and subscribe subjects for the client
// side of app's exchange.
func ClientSubjects(app string) (pub, sub string) {
	token := SubjectToken(app)
	return "dash." + token + ".request", "dash." + token + ".reply"
}

// CompanionSubjects mirrors ClientSubjects.
func CompanionSubjects(app string) (pub, sub string) {
	sub, pub = ClientSubjects(app)
	return pub, sub
}

// SubjectToken makes app usable as a single NATS subject token.
func SubjectToken(app string) string {
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")
	token := r.Replace(strings.TrimSpace(app))
	if token == "" {
		return "_"
	}
	return token
}
