package dash

import "testing"

func TestRegistrySingleSlot(t *testing.T) {
	var r registry
	first := &outstanding{seq: 1}
	if !r.tryAcquire(first) {
		t.Fatalf("empty slot refused")
	}
	if r.tryAcquire(&outstanding{seq: 2}) {
		t.Fatalf("occupied slot accepted a second request")
	}
	if _, ok := r.releaseIf(2); ok {
		t.Fatalf("stale seq released the slot")
	}
	o, ok := r.releaseIf(1)
	if !ok || o != first || r.occupied() {
		t.Fatalf("unexpected release o=%v ok=%v", o, ok)
	}
	if _, ok := r.release(); ok {
		t.Fatalf("release on empty slot reported success")
	}
}
