// Package sendengine implements the per-thread send loop: pace, fetch
// the next target from this thread's shard, build and emit packet_streams
// probes, and interleave the bounded retransmission ring (spec.md
// section 4.3).
package sendengine

import (
	"net"
	"net/netip"
	"time"

	"github.com/netreach/gozmap/internal/iterator"
	"github.com/netreach/gozmap/internal/netio"
	"github.com/netreach/gozmap/internal/probe"
	"github.com/netreach/gozmap/internal/state"
	"github.com/netreach/gozmap/internal/validate"
)

// Engine drives one send thread against one Shard. Not safe for
// concurrent use: the supervisor constructs one Engine per send thread.
type Engine struct {
	shard   *iterator.Shard
	ring    *Ring
	pacer   *Pacer
	audit   *AuditWriter
	srcAddr *SrcAddrRange

	validator *validate.Validator
	mod       probe.Module
	threadSt  probe.ThreadState
	sender    netio.Sender

	sendState *state.SendState
	cfg       *state.Config

	buf       []byte
	sentCount uint32
}

// EngineConfig bundles the per-thread construction parameters.
type EngineConfig struct {
	Shard     *iterator.Shard
	RingSize  int
	Pacer     *Pacer
	Audit     *AuditWriter
	SrcAddr   *SrcAddrRange
	Validator *validate.Validator
	Module    probe.Module
	ThreadSt  probe.ThreadState
	Sender    netio.Sender
	SendState *state.SendState
	Cfg       *state.Config
}

// NewEngine constructs an Engine already positioned at its shard's first
// target, with that target pre-loaded into the retransmit ring (matching
// the source's ips_to_retransmit[count_retransmit++]=curr priming step).
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		shard:     cfg.Shard,
		ring:      NewRing(cfg.RingSize),
		pacer:     cfg.Pacer,
		audit:     cfg.Audit,
		srcAddr:   cfg.SrcAddr,
		validator: cfg.Validator,
		mod:       cfg.Module,
		threadSt:  cfg.ThreadSt,
		sender:    cfg.Sender,
		sendState: cfg.SendState,
		cfg:       cfg.Cfg,
		buf:       make([]byte, cfg.Module.PacketLength()),
	}
	if cur := e.shard.CurIP(); cur != 0 {
		e.ring.Push(cur)
	} else {
		e.ring.ShardExhausted()
	}
	return e
}

func uint32ToIP(ip uint32) net.IP {
	return net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
}

func uint32ToAddr(ip uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)})
}

// Run drives the send loop until the shard and retransmit ring are fully
// drained, recvComplete reports true, maxRuntime elapses, or sent
// reaches maxTargets with nothing left to retransmit. It returns once
// the thread should exit.
func (e *Engine) Run(recvComplete func() bool, maxRuntime time.Duration) {
	startTime := time.Now()
	var curr uint32
	var retransmitMode bool

	// The ring was already primed with this same target in NewEngine;
	// the first iteration sends it fresh.
	curr = e.shard.CurIP()

	attempts := e.cfg.NumRetries + 1

	for {
		if recvComplete() {
			return
		}
		if e.ring.Done() {
			return
		}
		if maxRuntime > 0 && time.Since(startTime) >= maxRuntime {
			return
		}

		// advance reports 0 on the step where the shard runs out; there is
		// no target to send on that step.
		if curr != 0 {
			e.pacer.Wait()
			e.sendOne(curr, retransmitMode, attempts)
		}

		curr, retransmitMode = e.advance()
	}
}

// sendOne emits every packet_streams variant for one target. Pacing is
// calibrated once per target (in Run, before this call), matching
// send.c's send_run: the adaptive delay sits in the outer while(1) loop,
// ahead of its packet_streams loop, not inside it.
func (e *Engine) sendOne(dst uint32, retransmit bool, attempts int) {
	dstIP := uint32ToIP(dst)
	dstAddr := uint32ToAddr(dst)

	for i := 0; i < e.cfg.PacketStreams; i++ {
		srcIP := e.srcAddr.SrcIP(dst, i)
		vec := e.validator.Gen(srcIP, dst)

		n, err := e.mod.MakePacket(e.buf, uint32ToIP(srcIP), dstIP, vec, i, e.threadSt)
		if err != nil {
			e.sendState.Failures.Add(1)
			continue
		}

		now := time.Now()
		if retransmit {
			e.audit.Retransmit(now, dstAddr)
		} else {
			e.audit.Fresh(now, dstAddr)
		}

		if e.cfg.Dryrun {
			continue
		}

		var sendErr error
		for attempt := 0; attempt < attempts; attempt++ {
			if sendErr = e.sender.Send(e.buf[:n]); sendErr == nil {
				break
			}
		}
		if sendErr != nil {
			e.sendState.Failures.Add(1)
		} else {
			e.sendState.Sent.Add(1)
		}
	}
}

// advance implements the retransmission-advance step (spec.md section
// 4.3, step 3): pop from the ring if it is draining, otherwise pull a
// fresh target from the shard and push it into the ring.
func (e *Engine) advance() (next uint32, retransmit bool) {
	if e.ring.Mode() == DrainingTail {
		ip, ok := e.ring.PopRetransmit()
		if !ok {
			return 0, false
		}
		return ip, true
	}

	next = e.shard.NextIP()
	if next == 0 {
		e.ring.ShardExhausted()
		return 0, false
	}
	e.sentCount++
	e.ring.Push(next)
	if e.cfg.MaxTargets > 0 && e.sentCount >= e.cfg.MaxTargets {
		e.ring.ShardExhausted()
	}
	return next, false
}
