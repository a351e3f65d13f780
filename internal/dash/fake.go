package dash

import "github.com/danmuck/dashlink/internal/protocol"

// FakeGetDataResponse completes an outstanding GetData as if the companion
// had answered. n is used for integer kinds and text for text kinds. A kind
// other than the outstanding one is ignored.
func (e *Engine) FakeGetDataResponse(kind protocol.DataKind, n int32, text string) {
	o, ok := e.fakeTarget(protocol.RequestGetData)
	if !ok {
		return
	}
	if kind != o.req.Data {
		e.log.Warn().Stringer("kind", kind).Stringer("want", o.req.Data).Msg("fake response ignored: mismatched data kind")
		return
	}
	var v protocol.DataValue
	switch kind.Shape() {
	case protocol.ShapeInteger:
		v = protocol.IntValue(kind, n)
	case protocol.ShapeText:
		v = protocol.TextValue(kind, text)
	default:
		e.log.Warn().Stringer("kind", kind).Msg("fake response ignored: invalid data kind")
		return
	}
	e.finish(o, outcome{code: protocol.ErrorSuccess, value: v})
}

func (e *Engine) FakeSetFeatureResponse(kind protocol.FeatureKind, state protocol.FeatureState) {
	if o, ok := e.fakeTarget(protocol.RequestSetFeature); ok {
		e.fakeFeature(o, kind, state)
	}
}

func (e *Engine) FakeGetFeatureResponse(kind protocol.FeatureKind, state protocol.FeatureState) {
	if o, ok := e.fakeTarget(protocol.RequestGetFeature); ok {
		e.fakeFeature(o, kind, state)
	}
}

func (e *Engine) fakeFeature(o *outstanding, kind protocol.FeatureKind, state protocol.FeatureState) {
	if !kind.Valid() || !state.InRange() {
		e.log.Warn().Stringer("kind", kind).Stringer("state", state).Msg("fake response ignored: invalid feature")
		return
	}
	if kind != o.req.Feature {
		e.log.Warn().Stringer("kind", kind).Stringer("want", o.req.Feature).Msg("fake response ignored: mismatched feature kind")
		return
	}
	e.finish(o, outcome{code: protocol.ErrorSuccess, state: state})
}

// FakeError behaves like a result marker from the companion: it completes a
// probe with any code and a typed request only with a failure code.
func (e *Engine) FakeError(code protocol.ErrorKind) {
	if !code.Valid() {
		e.log.Warn().Stringer("code", code).Msg("fake error ignored: invalid code")
		return
	}
	if _, ok := e.reg.peek(); !ok {
		e.log.Warn().Stringer("code", code).Msg("fake error ignored: nothing outstanding")
		return
	}
	e.onResult(code)
}

func (e *Engine) fakeTarget(kind protocol.RequestKind) (*outstanding, bool) {
	o, ok := e.reg.peek()
	if !ok || o.req.Kind != kind {
		e.log.Warn().Stringer("want", kind).Msg("fake response ignored: no matching request outstanding")
		return nil, false
	}
	return o, true
}
