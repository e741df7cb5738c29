package sendengine_test

import (
	"bytes"
	"net"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/netreach/gozmap/internal/iterator"
	"github.com/netreach/gozmap/internal/netio"
	"github.com/netreach/gozmap/internal/probe/tcpsyn"
	"github.com/netreach/gozmap/internal/sendengine"
	"github.com/netreach/gozmap/internal/state"
	"github.com/netreach/gozmap/internal/validate"
)

func addrUint32(s string) uint32 {
	a := netip.MustParseAddr(s).As4()
	return uint32(a[0])<<24 | uint32(a[1])<<16 | uint32(a[2])<<8 | uint32(a[3])
}

// TestEngineSingleShardSmallRange exercises scenario S1: a single-shard
// /30 TCP SYN scan with no packet loss and max_targets below the ring
// capacity, so every target is both sent fresh and retransmitted once
// before the engine exits.
func TestEngineSingleShardSmallRange(t *testing.T) {
	params, err := iterator.NewParams()
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	first := addrUint32("192.0.2.0")
	last := addrUint32("192.0.2.3")

	shard := iterator.NewShard(iterator.Config{
		Params:      params,
		TotalShards: 1,
		ShardIndex:  0,
		Senders:     1,
		SenderIndex: 0,
		TargetFirst: first,
		TargetLast:  last,
	})

	srcAddr, err := sendengine.NewSrcAddrRange(addrUint32("10.0.0.1"), addrUint32("10.0.0.1"))
	if err != nil {
		t.Fatalf("NewSrcAddrRange: %v", err)
	}

	v, err := validate.New()
	if err != nil {
		t.Fatalf("validate.New: %v", err)
	}

	mod := tcpsyn.New()
	srcHW, _ := net.ParseMAC("02:00:00:00:00:01")
	gwHW, _ := net.ParseMAC("02:00:00:00:00:02")
	threadSt, err := mod.NewThreadState(srcHW, gwHW, 80, 32768, 61000)
	if err != nil {
		t.Fatalf("NewThreadState: %v", err)
	}

	sender := netio.NewMemorySender()
	var auditBuf bytes.Buffer
	audit := sendengine.NewAuditWriter(&auditBuf)

	sendState := &state.SendState{}
	cfg := &state.Config{
		NumRetries:    0,
		PacketStreams: 1,
		Dryrun:        false,
		MaxTargets:    0,
	}

	eng := sendengine.NewEngine(sendengine.EngineConfig{
		Shard:     shard,
		RingSize:  1000,
		Pacer:     sendengine.NewPacer(1000, 1),
		Audit:     audit,
		SrcAddr:   srcAddr,
		Validator: v,
		Module:    mod,
		ThreadSt:  threadSt,
		Sender:    sender,
		SendState: sendState,
		Cfg:       cfg,
	})

	done := func() bool { return false }
	eng.Run(done, 5*time.Second)

	// 4 targets, each sent fresh once and retransmitted once: 8 sends.
	if got, want := sender.Count(), 8; got != want {
		t.Fatalf("sender.Count() = %d, want %d", got, want)
	}
	if got, want := sendState.Sent.Load(), uint64(8); got != want {
		t.Fatalf("sendState.Sent = %d, want %d", got, want)
	}

	auditOut := auditBuf.String()
	lines := strings.Split(strings.TrimSpace(auditOut), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d audit lines, want 8: %q", len(lines), auditOut)
	}

	wantIPs := []string{"192.0.2.0", "192.0.2.1", "192.0.2.2", "192.0.2.3"}
	for _, ip := range wantIPs {
		if !strings.Contains(auditOut, ip) {
			t.Fatalf("audit output missing target %s: %q", ip, auditOut)
		}
	}

	freshCount, retransmitCount := 0, 0
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "^R\t"):
			retransmitCount++
		case strings.HasPrefix(line, "^\t"):
			freshCount++
		default:
			t.Fatalf("unrecognized audit line format: %q", line)
		}
	}
	if freshCount != 4 || retransmitCount != 4 {
		t.Fatalf("got %d fresh / %d retransmit audit lines, want 4/4", freshCount, retransmitCount)
	}
}
