package companion

import (
	"context"
	"strings"

	"github.com/danmuck/dashlink/internal/protocol/tlv"
	"github.com/danmuck/dashlink/internal/transport"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSListener answers requests published on dash.<app>.request.
type NATSListener struct {
	sub *nats.Subscription
}

// ServeNATS subscribes for app, or for every app when app is "*". Replies go
// to the matching dash.<app>.reply subject.
func ServeNATS(ctx context.Context, nc *nats.Conn, h *Handler, app string, log zerolog.Logger) (*NATSListener, error) {
	subject := "dash.*.request"
	if strings.TrimSpace(app) != "*" {
		_, subject = transport.CompanionSubjects(app)
	}
	log = log.With().Str("transport", "nats").Str("subject", subject).Logger()

	// nats delivers one subscription's messages serially
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		reply, ok := replySubject(msg.Subject)
		if !ok {
			log.Warn().Str("from", msg.Subject).Msg("dropping message on unexpected subject")
			return
		}
		d, err := tlv.DecodeDict(msg.Data)
		if err != nil {
			log.Warn().Err(err).Int("bytes", len(msg.Data)).Msg("dropping undecodable message")
			return
		}
		out, ok := h.Handle(ctx, d)
		if !ok {
			return
		}
		payload, err := tlv.EncodeDict(out)
		if err != nil {
			log.Error().Err(err).Msg("encoding reply failed")
			return
		}
		if err := nc.Publish(reply, payload); err != nil {
			log.Warn().Err(err).Str("to", reply).Msg("publishing reply failed")
		}
	})
	if err != nil {
		return nil, err
	}
	log.Info().Msg("nats listener ready")
	return &NATSListener{sub: sub}, nil
}

func (l *NATSListener) Close() error {
	return l.sub.Unsubscribe()
}

func replySubject(request string) (string, bool) {
	base, ok := strings.CutSuffix(request, ".request")
	if !ok || !strings.HasPrefix(base, "dash.") {
		return "", false
	}
	return base + ".reply", true
}
