package dash

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/logging"
	"github.com/danmuck/dashlink/internal/observability"
	"github.com/danmuck/dashlink/internal/protocol"
	"github.com/danmuck/dashlink/internal/transport"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const outcomeRejected = "rejected"

// Deps are the collaborators an Engine drives.
type Deps struct {
	Transport transport.Transport
	// Link defaults to Transport when it implements transport.LinkProbe.
	// With neither, the link is treated as always up.
	Link      transport.LinkProbe
	Scheduler eventloop.Scheduler
	Logger    *zerolog.Logger
	Tracer    trace.Tracer
}

// Engine owns the single outstanding request slot and drives one exchange
// at a time. It is not safe for concurrent use; drive it from one goroutine,
// usually an eventloop.Loop.
type Engine struct {
	cfg    Config
	tr     transport.Transport
	link   transport.LinkProbe
	sched  eventloop.Scheduler
	base   zerolog.Logger
	log    zerolog.Logger
	tracer trace.Tracer

	appName     string
	initialized bool
	onError     ErrorHandler
	logRequests bool

	reg   registry
	timer eventloop.Handle
	seq   uint64
	phase *fsm.FSM
}

func New(deps Deps, cfg Config) *Engine {
	log := logging.Component("dash")
	if deps.Logger != nil {
		log = *deps.Logger
	}
	link := deps.Link
	if link == nil {
		if probe, ok := deps.Transport.(transport.LinkProbe); ok {
			link = probe
		}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/danmuck/dashlink/internal/dash")
	}
	return &Engine{
		cfg:    cfg.withDefaults(),
		tr:     deps.Transport,
		link:   link,
		sched:  deps.Scheduler,
		base:   log,
		log:    log,
		tracer: tracer,
		phase:  newPhaseMachine(log),
	}
}

// Init names the app for every request header, stores the process-wide error
// handler and registers for inbound messages. It may be called again; a nil
// onError keeps the previous handler.
func (e *Engine) Init(appName string, onError ErrorHandler) error {
	name := protocol.TruncateAppName(strings.TrimSpace(appName), e.cfg.MaxAppNameBytes)
	if name == "" {
		return fmt.Errorf("%w: empty", protocol.ErrInvalidAppName)
	}
	e.appName = name
	if onError != nil || !e.initialized {
		e.onError = onError
	}
	e.logRequests = e.cfg.LogRequests
	e.tr.SetReceiver(e.OnReceive)
	e.initialized = true
	e.log = e.base.With().Str("app", name).Logger()
	e.log.Info().Str("version", e.cfg.LibraryVersion).Msg("initialized")
	return nil
}

// SetRequestLogging toggles debug logging of every outbound request.
func (e *Engine) SetRequestLogging(on bool) { e.logRequests = on }

// GetData asks the companion for one data value. h is called exactly once.
func (e *Engine) GetData(kind protocol.DataKind, h DataHandler) error {
	return e.issue(protocol.GetDataRequest(kind), dataCompletion(kind, h))
}

// SetFeature asks the companion to change a feature. The result carries the
// state the companion reports.
func (e *Engine) SetFeature(kind protocol.FeatureKind, state protocol.FeatureState, h FeatureHandler) error {
	return e.issue(protocol.SetFeatureRequest(kind, state), featureCompletion(kind, h))
}

// GetFeature asks the companion for a feature's current state.
func (e *Engine) GetFeature(kind protocol.FeatureKind, h FeatureHandler) error {
	return e.issue(protocol.GetFeatureRequest(kind), featureCompletion(kind, h))
}

// CheckIsAvailable probes the companion. The outcome, including local
// failures, goes to the process-wide error handler.
func (e *Engine) CheckIsAvailable() error {
	return e.issue(protocol.IsAvailableRequest(), &completion{fn: func(out outcome) {
		e.notifyError(out.code)
	}})
}

func (e *Engine) issue(req protocol.Request, c *completion) error {
	if err := e.admit(req); err != nil {
		e.log.Warn().Err(err).Stringer("request", req).Msg("request rejected")
		observability.RecordExchange(req.Kind.String(), outcomeRejected, 0)
		c.complete(outcome{code: protocol.ErrorSendFailed})
		return err
	}

	e.seq++
	o := &outstanding{seq: e.seq, req: req, done: c, started: time.Now()}
	e.reg.tryAcquire(o)

	out, err := e.open(req)
	if err != nil {
		e.reg.release()
		e.log.Warn().Err(err).Stringer("request", req).Msg("opening outbound failed")
		observability.RecordExchange(req.Kind.String(), protocol.ErrorSendFailed.String(), 0)
		c.complete(outcome{code: protocol.ErrorSendFailed})
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	_, o.span = e.tracer.Start(context.Background(), "dash."+req.Kind.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("dash.request", req.String()),
			attribute.Int64("dash.seq", int64(o.seq)),
		),
	)
	e.transition(eventIssue)
	if e.logRequests {
		e.log.Debug().Uint64("seq", o.seq).Stringer("request", req).Dur("send_delay", e.cfg.SendDelay).Msg("request queued")
	}

	seq := o.seq
	e.timer = e.sched.Schedule(e.cfg.SendDelay, func() { e.sendDue(seq, out) })
	return nil
}

func (e *Engine) admit(req protocol.Request) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if e.link != nil && !e.link.IsLinkConnected() {
		return ErrLinkDown
	}
	if e.reg.occupied() {
		return ErrBusy
	}
	return nil
}

// open begins an outbound buffer and writes the encoded request into it.
func (e *Engine) open(req protocol.Request) (*transport.Outbound, error) {
	d, err := protocol.EncodeRequest(protocol.Header{AppName: e.appName, LibraryVersion: e.cfg.LibraryVersion}, req)
	if err != nil {
		return nil, err
	}
	out, err := e.tr.BeginOutbound()
	if err != nil {
		return nil, err
	}
	for _, f := range d.Fields() {
		if err := e.tr.Write(out, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *Engine) sendDue(seq uint64, out *transport.Outbound) {
	o, ok := e.reg.peek()
	if !ok || o.seq != seq {
		return
	}
	e.timer = 0
	if err := e.tr.Send(out); err != nil {
		e.log.Warn().Err(err).Uint64("seq", seq).Stringer("request", o.req).Msg("send failed")
		e.finish(o, outcome{code: protocol.ErrorSendFailed})
		return
	}
	// a synchronous transport may already have delivered the reply
	if cur, ok := e.reg.peek(); !ok || cur.seq != seq {
		return
	}
	e.transition(eventSent)
	e.timer = e.sched.Schedule(e.cfg.ReplyTimeout, func() { e.timeout(seq) })
}

func (e *Engine) timeout(seq uint64) {
	o, ok := e.reg.peek()
	if !ok || o.seq != seq {
		return
	}
	e.timer = 0
	e.log.Warn().Uint64("seq", seq).Stringer("request", o.req).Dur("after", e.cfg.ReplyTimeout).Msg("reply timed out")
	e.finish(o, outcome{code: protocol.ErrorUnavailable})
}

// finish is the single exit for an accepted exchange. The slot is empty and
// the phase is idle before the handler runs, so the handler may issue again.
func (e *Engine) finish(o *outstanding, out outcome) {
	e.cancelTimer()
	if _, ok := e.reg.releaseIf(o.seq); !ok {
		e.log.Error().Uint64("seq", o.seq).Msg("finishing an exchange that is not outstanding")
		return
	}
	e.transition(eventComplete)
	e.observe(o, out.code)
	if !o.done.complete(out) {
		e.log.Error().Uint64("seq", o.seq).Msg("completion invoked twice")
	}
}

func (e *Engine) cancelTimer() {
	if e.timer != 0 {
		e.sched.Cancel(e.timer)
		e.timer = 0
	}
}

func (e *Engine) observe(o *outstanding, code protocol.ErrorKind) {
	elapsed := time.Since(o.started)
	observability.RecordExchange(o.req.Kind.String(), code.String(), elapsed)
	if o.span != nil {
		o.span.SetAttributes(attribute.String("dash.outcome", code.String()))
		if code != protocol.ErrorSuccess {
			o.span.SetStatus(codes.Error, code.Text())
		}
		o.span.End()
	}
	ev := e.log.Debug()
	if code != protocol.ErrorSuccess {
		ev = e.log.Info()
	}
	ev.Uint64("seq", o.seq).Stringer("request", o.req).Stringer("outcome", code).Dur("elapsed", elapsed).Msg("exchange complete")
}

func (e *Engine) notifyError(code protocol.ErrorKind) {
	if e.onError == nil {
		e.log.Debug().Stringer("code", code).Msg("no error handler registered")
		return
	}
	e.onError(code)
}
