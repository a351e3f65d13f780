package dash

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
)

// Phase is the engine's exchange state.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseSending       Phase = "sending"
	PhaseAwaitingReply Phase = "awaiting_reply"
)

const (
	eventIssue    = "issue"
	eventSent     = "sent"
	eventComplete = "complete"
)

func newPhaseMachine(log zerolog.Logger) *fsm.FSM {
	return fsm.NewFSM(
		string(PhaseIdle),
		fsm.Events{
			{Name: eventIssue, Src: []string{string(PhaseIdle)}, Dst: string(PhaseSending)},
			{Name: eventSent, Src: []string{string(PhaseSending)}, Dst: string(PhaseAwaitingReply)},
			{Name: eventComplete, Src: []string{string(PhaseSending), string(PhaseAwaitingReply)}, Dst: string(PhaseIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Trace().Str("event", e.Event).Str("from", e.Src).Str("to", e.Dst).Msg("phase")
			},
		},
	)
}

func (e *Engine) transition(event string) {
	if err := e.phase.Event(context.Background(), event); err != nil {
		e.log.Error().Err(err).Str("event", event).Str("phase", e.phase.Current()).Msg("phase transition rejected")
	}
}

// Phase reports the current exchange state.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Current())
}
