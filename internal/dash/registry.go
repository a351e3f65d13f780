package dash

import (
	"time"

	"github.com/danmuck/dashlink/internal/protocol"
	"go.opentelemetry.io/otel/trace"
)

// outstanding is the one in-flight exchange.
type outstanding struct {
	seq     uint64
	req     protocol.Request
	done    *completion
	span    trace.Span
	started time.Time
}

// registry holds at most one outstanding request.
type registry struct {
	slot *outstanding
}

func (r *registry) tryAcquire(o *outstanding) bool {
	if r.slot != nil || o == nil {
		return false
	}
	r.slot = o
	return true
}

func (r *registry) release() (*outstanding, bool) {
	o := r.slot
	r.slot = nil
	return o, o != nil
}

// releaseIf releases only the exchange numbered seq, so a stale timer cannot
// clear a newer request.
func (r *registry) releaseIf(seq uint64) (*outstanding, bool) {
	if r.slot == nil || r.slot.seq != seq {
		return nil, false
	}
	return r.release()
}

func (r *registry) occupied() bool { return r.slot != nil }

func (r *registry) peek() (*outstanding, bool) {
	return r.slot, r.slot != nil
}
