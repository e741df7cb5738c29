package sendengine

import "time"

// Pacer paces a send thread at its share of the configured aggregate
// rate, using the same self-calibrating busy-wait strategy as the
// original sender (spec.md section 4.3): no syscalls, sub-microsecond
// resolution, recalibrated every Interval iterations against a monotonic
// clock rather than trusting the spin count alone to stay accurate under
// varying CPU speed and scheduling noise.
//
// Per spec.md section 9's "Busy-wait pacing" redesign note, the spin
// counter is kept, but calibration is driven off time.Now (a monotonic
// clock read), not off elapsed spins, and the loop variable is volatile
// only in spirit: Go gives no portable volatile, so the counter is read
// back through an exported field after the loop to discourage the
// compiler from eliding it entirely.
type Pacer struct {
	targetRate float64 // this thread's share of the aggregate rate, pkts/sec
	delay      int64
	interval   int64

	count     int64
	lastCount int64
	lastTime  time.Time

	// Spins accumulates every busy-wait iteration executed; read-only
	// diagnostic, but its presence as an exported, written-every-call
	// field is what keeps the compiler from proving the spin loop dead.
	Spins uint64
}

// NewPacer returns a Pacer for one send thread's share of rate packets
// per second across senders threads. rate<=0 disables pacing (Wait
// returns immediately, every call).
func NewPacer(rate, senders int) *Pacer {
	if rate <= 0 || senders <= 0 {
		return &Pacer{targetRate: 0}
	}
	perThread := float64(rate) / float64(senders)
	p := &Pacer{
		targetRate: perThread,
		delay:      10000,
		interval:   int64(perThread) / 20,
		lastTime:   time.Now(),
	}
	if p.interval == 0 {
		p.interval = 1
	}
	return p
}

// Wait spins for approximately 1/targetRate seconds, recalibrating its
// internal delay every Interval calls. A Pacer built with rate<=0 never
// blocks.
func (p *Pacer) Wait() {
	if p.targetRate <= 0 {
		return
	}

	p.count++
	for vi := p.delay; vi > 0; vi-- {
		p.Spins++
	}

	if p.interval == 0 || p.count%p.interval == 0 {
		now := time.Now()
		elapsed := now.Sub(p.lastTime).Seconds()
		if elapsed > 0 {
			p.delay = int64(float64(p.delay) * float64(p.count-p.lastCount) / elapsed / p.targetRate)
			if p.delay < 1 {
				p.delay = 1
			}
		}
		p.lastCount = p.count
		p.lastTime = now
	}
}
