// Package tcpsyn implements a probe module that sends a bare TCP SYN and
// classifies SYN-ACK as open, RST as closed, grounded on the raw
// Ethernet/IPv4/TCP layer construction shown in the wmap injector example
// (other_examples), adapted from github.com/google/gopacket to this
// project's github.com/gopacket/gopacket fork.
package tcpsyn

import (
	"fmt"
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/netreach/gozmap/internal/fieldset"
	"github.com/netreach/gozmap/internal/probe"
	"github.com/netreach/gozmap/internal/validate"
)

const fieldSuccess = "success"

// Classification labels, written to fs.System.Classification: the
// general "classification"/"success" system fields are how every probe
// module reports its verdict, so this module carries no schema field of
// its own beyond the boolean success flag.
const (
	classSynAck  = "synack"
	classRST     = "rst"
	classOther   = "other"
	classUnknown = "unknown"
)

var schema = &fieldset.Schema{
	Fields: []fieldset.FieldDef{
		{Name: fieldSuccess, Kind: fieldset.KindBool},
	},
	SuccessIndex:    0,
	AppSuccessIndex: -1,
}

// Module implements probe.Module for a raw TCP SYN scan.
type Module struct{}

// New returns a ready tcpsyn probe module. global_initialize is a no-op
// for this probe: it needs no process-wide state beyond the schema.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return "tcp_syn" }

// PacketLength is the fixed wire size of an Ethernet + IPv4 + bare TCP
// SYN frame with no options: 14 + 20 + 20 bytes.
func (m *Module) PacketLength() int { return 14 + 20 + 20 }

func (m *Module) Schema() *fieldset.Schema { return schema }

type threadState struct {
	srcHW, gwHW              net.HardwareAddr
	targetPort               layers.TCPPort
	srcPortFirst, srcPortLast uint16
}

func (m *Module) NewThreadState(srcHW, gwHW net.HardwareAddr, targetPort, srcPortFirst, srcPortLast uint16) (probe.ThreadState, error) {
	return &threadState{
		srcHW:        srcHW,
		gwHW:         gwHW,
		targetPort:   layers.TCPPort(targetPort),
		srcPortFirst: srcPortFirst,
		srcPortLast:  srcPortLast,
	}, nil
}

// MakePacket writes an Ethernet + IPv4 + TCP SYN frame into buf. The
// source port and initial sequence number are both derived from the
// validation vector, so a response can be checked against it without the
// core ever recording this target was probed.
func (m *Module) MakePacket(buf []byte, srcIP, dstIP net.IP, vec validate.Vector, streamIndex int, st probe.ThreadState) (int, error) {
	ts, ok := st.(*threadState)
	if !ok || ts == nil {
		return 0, fmt.Errorf("tcpsyn: MakePacket called with no thread state")
	}

	eth := &layers.Ethernet{
		SrcMAC:       ts.srcHW,
		DstMAC:       ts.gwHW,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP.To4(),
		DstIP:    dstIP.To4(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(vec.SrcPort(ts.srcPortFirst, ts.srcPortLast)),
		DstPort: ts.targetPort,
		Seq:     vec.Word(0) + uint32(streamIndex),
		SYN:     true,
		Window:  65535,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return 0, fmt.Errorf("tcpsyn: set checksum layer: %w", err)
	}

	sb := gopacket.NewSerializeBufferExpectedSize(m.PacketLength(), 0)
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(sb, opts, eth, ip, tcp); err != nil {
		return 0, fmt.Errorf("tcpsyn: serialize: %w", err)
	}

	return copy(buf, sb.Bytes()), nil
}

// ValidatePacket checks a direct TCP reply (SYN-ACK or RST, carrying our
// sequence number as its acknowledgment) or a TCP-payload ICMP error
// (unreachable/redirect/etc., whose embedded copy of our original segment
// carries our sequence number back verbatim, with no ACK semantics).
func (m *Module) ValidatePacket(ipHdr []byte, remaining int, srcIP net.IP, vec validate.Vector) bool {
	if remaining <= 0 || remaining > len(ipHdr) {
		return false
	}
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(ipHdr[:remaining], gopacket.NilDecodeFeedback); err != nil {
		return false
	}

	expectedSeq := vec.Word(0)

	switch ip.Protocol {
	case layers.IPProtocolTCP:
		var tcp layers.TCP
		if err := tcp.DecodeFromBytes(ip.Payload, gopacket.NilDecodeFeedback); err != nil {
			return false
		}
		return tcp.Ack == expectedSeq+1 || tcp.Ack == expectedSeq
	case layers.IPProtocolICMPv4:
		if len(ip.Payload) < 8 {
			return false
		}
		var innerIP layers.IPv4
		if err := innerIP.DecodeFromBytes(ip.Payload[8:], gopacket.NilDecodeFeedback); err != nil {
			return false
		}
		if innerIP.Protocol != layers.IPProtocolTCP {
			return false
		}
		var innerTCP layers.TCP
		if err := innerTCP.DecodeFromBytes(innerIP.Payload, gopacket.NilDecodeFeedback); err != nil {
			return false
		}
		return uint32(innerTCP.Seq) == expectedSeq
	default:
		return false
	}
}

// ethernetHeaderLen is the fixed framing ProcessPacket's raw parameter
// carries ahead of the IP header, real or synthesized by the receive
// engine (recvengine.fakeEthernetFrame) when send_ip_pkts is set.
const ethernetHeaderLen = 14

// ProcessPacket classifies the response as synack (open), rst (closed),
// an ICMP unreachable/error (closed/filtered), or other, and sets the
// success field for synack only.
func (m *Module) ProcessPacket(raw []byte, fs *fieldset.Set) {
	if len(raw) < ethernetHeaderLen {
		fs.System.Classification = classUnknown
		return
	}
	raw = raw[ethernetHeaderLen:]

	var ip layers.IPv4
	if err := ip.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		fs.System.Classification = classUnknown
		return
	}

	if ip.Protocol == layers.IPProtocolICMPv4 {
		var icmp layers.ICMPv4
		if err := icmp.DecodeFromBytes(ip.Payload, gopacket.NilDecodeFeedback); err != nil {
			fs.System.Classification = classUnknown
			return
		}
		fs.System.Classification = icmpClassification(icmp.TypeCode.Type())
		fs.SetValue(schema.IndexOf(fieldSuccess), false)
		return
	}

	var tcp layers.TCP
	if err := tcp.DecodeFromBytes(ip.Payload, gopacket.NilDecodeFeedback); err != nil {
		fs.System.Classification = classUnknown
		return
	}

	switch {
	case tcp.SYN && tcp.ACK:
		fs.System.Classification = classSynAck
		fs.SetValue(schema.IndexOf(fieldSuccess), true)
	case tcp.RST:
		fs.System.Classification = classRST
		fs.SetValue(schema.IndexOf(fieldSuccess), false)
	default:
		fs.System.Classification = classOther
		fs.SetValue(schema.IndexOf(fieldSuccess), false)
	}
}

func icmpClassification(icmpType uint8) string {
	switch icmpType {
	case layers.ICMPv4TypeDestinationUnreachable:
		return "icmp-unreach"
	case layers.ICMPv4TypeSourceQuench:
		return "icmp-sourcequench"
	case layers.ICMPv4TypeRedirect:
		return "icmp-redirect"
	case layers.ICMPv4TypeTimeExceeded:
		return "icmp-timxceed"
	case layers.ICMPv4TypeParameterProblem:
		return "icmp-paramprob"
	default:
		return "icmp-other"
	}
}
