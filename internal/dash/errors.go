package dash

import (
	"errors"
	"fmt"

	"github.com/danmuck/dashlink/internal/protocol"
)

var (
	ErrNotInitialized = errors.New("dash: not initialized")
	ErrLinkDown       = errors.New("dash: companion link down")
	ErrBusy           = errors.New("dash: request already in flight")

	ErrSendFailed   = errors.New("dash: send failed")
	ErrUnavailable  = errors.New("dash: companion unavailable")
	ErrNoPermission = errors.New("dash: no permission")
	ErrWrongVersion = errors.New("dash: wrong companion version")
)

// ErrorFor maps an exchange outcome to a sentinel error. Success maps to nil.
func ErrorFor(k protocol.ErrorKind) error {
	switch k {
	case protocol.ErrorSuccess:
		return nil
	case protocol.ErrorSendFailed:
		return ErrSendFailed
	case protocol.ErrorUnavailable:
		return ErrUnavailable
	case protocol.ErrorNoPermission:
		return ErrNoPermission
	case protocol.ErrorWrongVersion:
		return ErrWrongVersion
	default:
		return fmt.Errorf("%w: %d", protocol.ErrInvalidErrorKind, int32(k))
	}
}
