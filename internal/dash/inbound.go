package dash

import (
	"github.com/danmuck/dashlink/internal/observability"
	"github.com/danmuck/dashlink/internal/protocol"
)

// OnReceive routes one inbound dictionary. It is registered with the
// transport by Init.
func (e *Engine) OnReceive(d protocol.Dict) {
	switch ev := protocol.DecodeResponse(d).(type) {
	case protocol.Malformed:
		e.discard("malformed", ev.Reason)
	case protocol.DataReply:
		o, ok := e.reg.peek()
		if !ok || o.req.Kind != protocol.RequestGetData {
			e.discard("unexpected", nil)
			return
		}
		if ev.Value.Kind != o.req.Data {
			e.discard("mismatched", nil)
			return
		}
		e.finish(o, outcome{code: protocol.ErrorSuccess, value: ev.Value})
	case protocol.FeatureReply:
		o, ok := e.reg.peek()
		if !ok || o.req.Kind != ev.Request {
			e.discard("unexpected", nil)
			return
		}
		if ev.Kind != o.req.Feature {
			e.discard("mismatched", nil)
			return
		}
		e.finish(o, outcome{code: protocol.ErrorSuccess, state: ev.State})
	case protocol.ResultReply:
		e.onResult(ev.Code)
	}
}

// onResult handles a result marker. An outstanding probe is completed by any
// code; a typed request only by a failure code. The process-wide handler
// always hears about it exactly once.
func (e *Engine) onResult(code protocol.ErrorKind) {
	o, ok := e.reg.peek()
	if ok && (o.req.Kind == protocol.RequestIsAvailable || code != protocol.ErrorSuccess) {
		e.finish(o, outcome{code: code})
		if o.req.Kind == protocol.RequestIsAvailable {
			return
		}
	}
	e.notifyError(code)
}

func (e *Engine) discard(reason string, err error) {
	observability.RecordInboundDiscarded(reason)
	ev := e.log.Warn().Str("reason", reason).Str("phase", e.phase.Current())
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("inbound message discarded")
}
