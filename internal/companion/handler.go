package companion

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/observability"
	"github.com/danmuck/dashlink/internal/protocol"
	"github.com/danmuck/dashlink/internal/transport"
	"github.com/rs/zerolog"
)

// Handler answers client requests against a Device.
type Handler struct {
	device  *Device
	perms   PermissionStore
	version string
	log     zerolog.Logger
}

func NewHandler(device *Device, perms PermissionStore, version string, log zerolog.Logger) *Handler {
	if strings.TrimSpace(version) == "" {
		version = protocol.DefaultLibraryVersion
	}
	return &Handler{
		device:  device,
		perms:   perms,
		version: version,
		log:     log.With().Str("component", "companion").Logger(),
	}
}

func (h *Handler) Device() *Device              { return h.device }
func (h *Handler) Permissions() PermissionStore { return h.perms }

// Handle builds the reply for one request. The bool is false when nothing
// should be sent back.
func (h *Handler) Handle(ctx context.Context, d protocol.Dict) (protocol.Dict, bool) {
	hdr, req, err := protocol.DecodeRequest(d)
	if !Compatible(hdr.LibraryVersion, h.version) {
		h.log.Warn().Str("app", hdr.AppName).Str("client_version", hdr.LibraryVersion).Str("version", h.version).Msg("incompatible client")
		observability.RecordCompanionRequest(req.Kind.String(), protocol.ErrorWrongVersion.String())
		return protocol.EncodeResult(protocol.ErrorWrongVersion), true
	}
	if err != nil {
		h.log.Warn().Err(err).Str("app", hdr.AppName).Msg("dropping malformed request")
		observability.RecordCompanionRequest("malformed", "dropped")
		return protocol.Dict{}, false
	}

	log := h.log.With().Str("app", hdr.AppName).Stringer("request", req).Logger()
	if created, err := h.perms.Register(ctx, hdr.AppName); err != nil {
		log.Error().Err(err).Msg("registering app failed")
	} else if created {
		log.Info().Msg("new app registered without write permission")
	}

	reply, code := h.answer(ctx, log, hdr.AppName, req)
	observability.RecordCompanionRequest(req.Kind.String(), code.String())
	log.Debug().Stringer("result", code).Msg("answered")
	return reply, true
}

func (h *Handler) answer(ctx context.Context, log zerolog.Logger, app string, req protocol.Request) (protocol.Dict, protocol.ErrorKind) {
	switch req.Kind {
	case protocol.RequestGetData:
		v, ok := h.device.Data(req.Data)
		if !ok {
			return protocol.EncodeResult(protocol.ErrorUnavailable), protocol.ErrorUnavailable
		}
		reply, err := protocol.EncodeDataReply(v)
		if err != nil {
			log.Error().Err(err).Msg("encoding data reply failed")
			return protocol.EncodeResult(protocol.ErrorUnavailable), protocol.ErrorUnavailable
		}
		return withSuccess(reply), protocol.ErrorSuccess

	case protocol.RequestSetFeature:
		permitted, err := h.perms.Permitted(ctx, app)
		if err != nil {
			log.Error().Err(err).Msg("permission lookup failed")
		}
		if !permitted {
			log.Info().Msg("write refused: app not permitted")
			return protocol.EncodeResult(protocol.ErrorNoPermission), protocol.ErrorNoPermission
		}
		state, err := h.device.SetFeature(req.Feature, req.State)
		if err != nil && !errors.Is(err, ErrUnsupportedState) {
			log.Error().Err(err).Msg("set feature failed")
			return protocol.EncodeResult(protocol.ErrorUnavailable), protocol.ErrorUnavailable
		}
		if err != nil {
			log.Warn().Err(err).Msg("unsupported state left unchanged")
		}
		return h.featureReply(log, req.Kind, req.Feature, state)

	case protocol.RequestGetFeature:
		return h.featureReply(log, req.Kind, req.Feature, h.device.Feature(req.Feature))

	default:
		return protocol.EncodeResult(protocol.ErrorSuccess), protocol.ErrorSuccess
	}
}

func (h *Handler) featureReply(log zerolog.Logger, kind protocol.RequestKind, feature protocol.FeatureKind, state protocol.FeatureState) (protocol.Dict, protocol.ErrorKind) {
	reply, err := protocol.EncodeFeatureReply(kind, feature, state)
	if err != nil {
		log.Error().Err(err).Msg("encoding feature reply failed")
		return protocol.EncodeResult(protocol.ErrorUnavailable), protocol.ErrorUnavailable
	}
	return withSuccess(reply), protocol.ErrorSuccess
}

// withSuccess adds the result marker the companion sends alongside every
// typed reply.
func withSuccess(d protocol.Dict) protocol.Dict {
	d.SetInt32(protocol.RequestError.Key(), 0)
	d.SetInt32(protocol.KeyErrorCode, int32(protocol.ErrorSuccess))
	return d
}

// Attach answers every dictionary t receives. Replies are delayed by delay
// on sched when it is positive.
func (h *Handler) Attach(ctx context.Context, t transport.Transport, sched eventloop.Scheduler, delay time.Duration, log zerolog.Logger) {
	t.SetReceiver(func(d protocol.Dict) {
		reply, ok := h.Handle(ctx, d)
		if !ok {
			return
		}
		send := func() {
			if err := transport.SendDict(t, reply); err != nil {
				log.Warn().Err(err).Msg("sending reply failed")
			}
		}
		if delay > 0 && sched != nil {
			sched.Schedule(delay, send)
			return
		}
		send()
	})
}

// Compatible reports whether a client speaking remote may talk to a companion
// speaking local: same major, and the client minor is not newer.
func Compatible(remote, local string) bool {
	rMajor, rMinor, ok := parseVersion(remote)
	if !ok {
		return false
	}
	lMajor, lMinor, ok := parseVersion(local)
	if !ok {
		return false
	}
	return rMajor == lMajor && rMinor <= lMinor
}

func parseVersion(raw string) (int, int, bool) {
	major, minor, found := strings.Cut(strings.TrimSpace(raw), ".")
	if !found {
		return 0, 0, false
	}
	ma, err := strconv.Atoi(major)
	if err != nil {
		return 0, 0, false
	}
	mi, err := strconv.Atoi(minor)
	if err != nil {
		return 0, 0, false
	}
	return ma, mi, true
}
