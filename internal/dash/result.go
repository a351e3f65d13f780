package dash

import "github.com/danmuck/dashlink/internal/protocol"

// DataResult is delivered once per GetData. Value is only meaningful when
// Err is ErrorSuccess.
type DataResult struct {
	Kind  protocol.DataKind
	Value protocol.DataValue
	Err   protocol.ErrorKind
}

// FeatureResult is delivered once per SetFeature or GetFeature. State is
// FeatureStateUnknown on failure.
type FeatureResult struct {
	Kind  protocol.FeatureKind
	State protocol.FeatureState
	Err   protocol.ErrorKind
}

type (
	DataHandler    func(DataResult)
	FeatureHandler func(FeatureResult)
	ErrorHandler   func(protocol.ErrorKind)
)

type outcome struct {
	code  protocol.ErrorKind
	value protocol.DataValue
	state protocol.FeatureState
}

// completion wraps the caller's handler and refuses to run it twice.
type completion struct {
	fn   func(outcome)
	done bool
}

func (c *completion) complete(out outcome) bool {
	if c.done {
		return false
	}
	c.done = true
	if c.fn != nil {
		c.fn(out)
	}
	return true
}

func dataCompletion(kind protocol.DataKind, h DataHandler) *completion {
	return &completion{fn: func(out outcome) {
		if h == nil {
			return
		}
		r := DataResult{Kind: kind, Value: protocol.DataValue{Kind: kind}, Err: out.code}
		if out.code == protocol.ErrorSuccess {
			r.Value = out.value
		}
		h(r)
	}}
}

func featureCompletion(kind protocol.FeatureKind, h FeatureHandler) *completion {
	return &completion{fn: func(out outcome) {
		if h == nil {
			return
		}
		r := FeatureResult{Kind: kind, State: protocol.FeatureStateUnknown, Err: out.code}
		if out.code == protocol.ErrorSuccess {
			r.State = out.state
		}
		h(r)
	}}
}
