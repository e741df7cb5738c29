package sendengine_test

import (
	"testing"
	"time"

	"github.com/netreach/gozmap/internal/sendengine"
)

func TestPacerDisabledDoesNotBlock(t *testing.T) {
	p := sendengine.NewPacer(0, 1)
	start := time.Now()
	for i := 0; i < 100000; i++ {
		p.Wait()
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("disabled pacer took %s for 100000 calls, want near-instant", elapsed)
	}
}

// TestPacerApproximatesRate checks the pacer converges to roughly the
// configured per-thread rate once calibrated, within generous tolerance
// to keep the test stable under scheduler noise.
func TestPacerApproximatesRate(t *testing.T) {
	const rate = 20000 // pkts/sec, single sender
	const n = 8000

	p := sendengine.NewPacer(rate, 1)
	start := time.Now()
	for i := 0; i < n; i++ {
		p.Wait()
	}
	elapsed := time.Since(start)

	want := time.Duration(float64(n) / float64(rate) * float64(time.Second))
	low := want / 2
	high := want * 3

	if elapsed < low || elapsed > high {
		t.Fatalf("elapsed %s for %d sends at %d/sec, want roughly %s (range %s-%s)", elapsed, n, rate, want, low, high)
	}
}
