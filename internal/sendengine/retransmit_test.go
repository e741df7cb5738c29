package sendengine_test

import (
	"testing"

	"github.com/netreach/gozmap/internal/sendengine"
)

// TestRetransmitRingDrainsWhenTargetsFitInRing covers max_targets <= R:
// the ring never fills, so exhaustion goes straight to DrainingTail and
// then Done once every buffered target has been popped once.
func TestRetransmitRingDrainsWhenTargetsFitInRing(t *testing.T) {
	r := sendengine.NewRing(10)

	for _, ip := range []uint32{1, 2, 3, 4} {
		if r.Mode() != sendengine.Fresh {
			t.Fatalf("ring mode = %v before shard exhaustion, want Fresh", r.Mode())
		}
		r.Push(ip)
	}
	r.ShardExhausted()

	if r.Mode() != sendengine.DrainingTail {
		t.Fatalf("ring mode = %v after exhaustion with buffered targets, want DrainingTail", r.Mode())
	}

	var drained []uint32
	for {
		ip, ok := r.PopRetransmit()
		if !ok {
			break
		}
		drained = append(drained, ip)
	}

	if len(drained) != 4 {
		t.Fatalf("drained %d targets, want 4", len(drained))
	}
	if !r.Done() {
		t.Fatalf("ring not Done after draining every buffered target")
	}
}

// TestRetransmitRingWrapsWhenFull covers max_targets mod R != 0: the ring
// fills to capacity mid-scan, cycles through a full retransmit pass, then
// resumes accepting fresh targets, and only reaches Done once the shard
// is exhausted and the tail is drained.
func TestRetransmitRingWrapsWhenFull(t *testing.T) {
	const capacity = 3
	r := sendengine.NewRing(capacity)

	for _, ip := range []uint32{10, 20, 30} {
		r.Push(ip)
	}
	if r.Mode() != sendengine.DrainingTail {
		t.Fatalf("ring mode = %v once full, want DrainingTail", r.Mode())
	}

	var firstPass []uint32
	for i := 0; i < capacity; i++ {
		ip, ok := r.PopRetransmit()
		if !ok {
			t.Fatalf("PopRetransmit() ok=false mid first drain pass")
		}
		firstPass = append(firstPass, ip)
	}
	if got := firstPass; got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Fatalf("first drain pass = %v, want [10 20 30] in FIFO order", got)
	}
	if r.Mode() != sendengine.Fresh {
		t.Fatalf("ring mode = %v after draining a full ring with no shard-exhaustion signal, want Fresh", r.Mode())
	}

	// One more target arrives, then the shard reports exhaustion.
	r.Push(40)
	r.ShardExhausted()
	if r.Mode() != sendengine.DrainingTail {
		t.Fatalf("ring mode = %v after exhaustion with one buffered target, want DrainingTail", r.Mode())
	}

	ip, ok := r.PopRetransmit()
	if !ok || ip != 40 {
		t.Fatalf("PopRetransmit() = (%d, %v), want (40, true)", ip, ok)
	}
	if !r.Done() {
		t.Fatalf("ring not Done after draining the final buffered target post-exhaustion")
	}
}

func TestRetransmitRingDoneWhenExhaustedWithEmptyRing(t *testing.T) {
	r := sendengine.NewRing(5)
	r.ShardExhausted()
	if !r.Done() {
		t.Fatalf("ring not immediately Done when exhausted with nothing buffered")
	}
	if _, ok := r.PopRetransmit(); ok {
		t.Fatalf("PopRetransmit() ok=true on an empty, exhausted ring")
	}
}
