package recvengine

import "encoding/binary"

// ipv4Header is a hand-rolled parse of just the fields handle_packet (and
// its ICMP branch) needs, read directly off the wire rather than through
// gopacket's layered decoder (SPEC_FULL.md section 4.7): the spec's ICMP
// min-length guards depend on exact byte offsets and on *not* re-validating
// the inner IP header length, behavior a generic decoder would hide.
type ipv4Header struct {
	ihl      int // header length in bytes
	protocol uint8
	srcIP    uint32
	dstIP    uint32
	payload  []byte // bytes immediately following the header, to the end of buf
}

const (
	protoICMP = 1
	protoTCP  = 6

	icmpUnreach      = 3
	icmpSourceQuench = 4
	icmpRedirect     = 5
	icmpTimeExceeded = 11
	icmpParamProb    = 12
)

// parseIPv4 reads an IPv4 header from the front of buf. It returns false if
// buf is too short to contain even a minimal (no-options) header.
func parseIPv4(buf []byte) (ipv4Header, bool) {
	if len(buf) < 20 {
		return ipv4Header{}, false
	}
	ihl := int(buf[0]&0x0f) * 4
	if ihl < 20 || len(buf) < ihl {
		return ipv4Header{}, false
	}
	return ipv4Header{
		ihl:      ihl,
		protocol: buf[9],
		srcIP:    binary.BigEndian.Uint32(buf[12:16]),
		dstIP:    binary.BigEndian.Uint32(buf[16:20]),
		payload:  buf[ihl:],
	}, true
}

// icmpEmbedded holds the inner (originally sent) IP header carried inside
// an ICMP error message's body, used to recover the validation vector of
// the probe this error refers to.
type icmpEmbedded struct {
	icmpType uint8
	inner    ipv4Header
}

// parseICMPEmbedded mirrors recv.c's ICMP branch of handle_packet exactly,
// including its one deliberate omission (design note 2 in spec.md section
// 9): after learning the inner IP header's own length, the source does not
// recheck buflen against it a second time ("Now we know the actual inner ip
// length, we should recheck the buffer" is commented out there) — neither
// does this port. Only the initial minimum-length guard below applies.
func parseICMPEmbedded(icmpPayload []byte, outerIHL int, buflen int) (icmpEmbedded, bool) {
	// min_len = 4*ip_hl + 8 (icmp header) + sizeof(struct ip) + sizeof(struct tcphdr)
	minLen := outerIHL + 8 + 20 + 20
	if buflen < minLen {
		return icmpEmbedded{}, false
	}
	if len(icmpPayload) < 8 {
		return icmpEmbedded{}, false
	}
	icmpType := icmpPayload[0]
	switch icmpType {
	case icmpUnreach, icmpSourceQuench, icmpRedirect, icmpTimeExceeded, icmpParamProb:
	default:
		return icmpEmbedded{}, false
	}

	innerBuf := icmpPayload[8:]
	inner, ok := parseIPv4(innerBuf)
	if !ok {
		return icmpEmbedded{}, false
	}
	// Deliberately no second length recheck against inner.ihl here — see
	// the doc comment above.
	if inner.protocol != protoTCP {
		return icmpEmbedded{}, false
	}
	return icmpEmbedded{icmpType: icmpType, inner: inner}, true
}
