package dash

import (
	"context"

	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/protocol"
)

// Session lets goroutines other than the loop's run one exchange at a time
// and wait for its single completion.
type Session struct {
	loop *eventloop.Loop
	eng  *Engine
	errs chan protocol.ErrorKind
}

// OpenSession initializes eng on loop. onError, when set, also sees every
// code delivered to the process-wide handler.
func OpenSession(ctx context.Context, loop *eventloop.Loop, eng *Engine, appName string, onError ErrorHandler) (*Session, error) {
	s := &Session{loop: loop, eng: eng, errs: make(chan protocol.ErrorKind, 8)}
	var initErr error
	err := loop.Call(ctx, func() {
		initErr = eng.Init(appName, func(code protocol.ErrorKind) {
			select {
			case s.errs <- code:
			default:
			}
			if onError != nil {
				onError(code)
			}
		})
	})
	if err != nil {
		return nil, err
	}
	if initErr != nil {
		return nil, initErr
	}
	return s, nil
}

func (s *Session) GetData(ctx context.Context, kind protocol.DataKind) (DataResult, error) {
	return await(ctx, s.loop, func(done func(DataResult)) error {
		return s.eng.GetData(kind, DataHandler(done))
	}, func(r DataResult) protocol.ErrorKind { return r.Err })
}

func (s *Session) SetFeature(ctx context.Context, kind protocol.FeatureKind, state protocol.FeatureState) (FeatureResult, error) {
	return await(ctx, s.loop, func(done func(FeatureResult)) error {
		return s.eng.SetFeature(kind, state, FeatureHandler(done))
	}, func(r FeatureResult) protocol.ErrorKind { return r.Err })
}

func (s *Session) GetFeature(ctx context.Context, kind protocol.FeatureKind) (FeatureResult, error) {
	return await(ctx, s.loop, func(done func(FeatureResult)) error {
		return s.eng.GetFeature(kind, FeatureHandler(done))
	}, func(r FeatureResult) protocol.ErrorKind { return r.Err })
}

// Check runs the availability probe and returns the code the process-wide
// handler received for it.
func (s *Session) Check(ctx context.Context) (protocol.ErrorKind, error) {
	var issueErr error
	err := s.loop.Call(ctx, func() {
		s.drainErrors()
		issueErr = s.eng.CheckIsAvailable()
	})
	if err != nil {
		return protocol.ErrorSendFailed, err
	}
	select {
	case code := <-s.errs:
		if issueErr != nil {
			return code, issueErr
		}
		return code, ErrorFor(code)
	case <-ctx.Done():
		return protocol.ErrorUnavailable, ctx.Err()
	}
}

func (s *Session) drainErrors() {
	for {
		select {
		case <-s.errs:
		default:
			return
		}
	}
}

// await issues on the loop and blocks for the one completion. A synchronous
// rejection returns the handler's result together with the issuing error.
func await[T any](ctx context.Context, loop *eventloop.Loop, issue func(func(T)) error, code func(T) protocol.ErrorKind) (T, error) {
	results := make(chan T, 1)
	var issueErr error
	var zero T
	err := loop.Call(ctx, func() {
		issueErr = issue(func(r T) { results <- r })
	})
	if err != nil {
		return zero, err
	}
	if issueErr != nil {
		select {
		case r := <-results:
			return r, issueErr
		default:
			return zero, issueErr
		}
	}
	select {
	case r := <-results:
		return r, ErrorFor(code(r))
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-loop.Done():
		select {
		case r := <-results:
			return r, ErrorFor(code(r))
		default:
			return zero, eventloop.ErrStopped
		}
	}
}
