// Package probe declares the contract every probe module implements
// (spec.md section 4.5): how to build an outgoing packet, how to decide
// whether an inbound packet is plausibly a response to one we sent, and
// how to turn an accepted packet into field-set values.
package probe

import (
	"net"

	"github.com/netreach/gozmap/internal/fieldset"
	"github.com/netreach/gozmap/internal/validate"
)

// Module is the interface the send and receive engines drive a probe
// module through. A Module is constructed once per process; ThreadState
// is constructed once per send thread.
type Module interface {
	// Name identifies the probe module, e.g. for CLI selection and log
	// lines.
	Name() string

	// PacketLength is the fixed wire length of one outgoing probe,
	// including any Ethernet framing this module writes itself.
	PacketLength() int

	// Schema describes the fields ProcessPacket populates, including the
	// distinguished success and optional app-success indices.
	Schema() *fieldset.Schema

	// NewThreadState allocates the per-send-thread private state handed
	// back on every MakePacket call from that thread, per
	// thread_initialize. srcPortFirst/srcPortLast is the configured
	// source-port range the validation vector's SrcPort selects from.
	NewThreadState(srcHW, gwHW net.HardwareAddr, targetPort, srcPortFirst, srcPortLast uint16) (ThreadState, error)

	// MakePacket serializes one outgoing probe into buf, which is at
	// least PacketLength() bytes. streamIndex selects among
	// packet_streams probes per target, for probe modules that vary a
	// field (e.g. TCP sequence number) across streams.
	MakePacket(buf []byte, srcIP, dstIP net.IP, vec validate.Vector, streamIndex int, st ThreadState) (n int, err error)

	// ValidatePacket reports whether an inbound IP packet (ipHdr points
	// at the start of the IP header; remaining is the captured length
	// from there) is plausibly a response to a probe this module sent,
	// given the peer's source address and the validation vector the
	// receive engine recomputed for this direction.
	ValidatePacket(ipHdr []byte, remaining int, srcIP net.IP, vec validate.Vector) bool

	// ProcessPacket populates fs's probe-specific fields from an accepted
	// inbound packet. bytes always points at the start of an Ethernet
	// frame: a real one when the capture supplies Ethernet framing, or a
	// synthesized all-zero one (ETH_P_IP, zero src/dst) when
	// cfg.SendIPPkts means the kernel delivered a bare IP datagram. This
	// mirrors recv.c's fake_eth_hdr hack, which exists because probe
	// modules are written against the full frame regardless of capture
	// mode.
	ProcessPacket(bytes []byte, fs *fieldset.Set)
}

// ThreadState is opaque per-send-thread probe state, e.g. a pre-built
// packet template. Probe modules that need no per-thread state may
// return a nil ThreadState.
type ThreadState interface{}
