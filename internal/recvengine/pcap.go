package recvengine

import (
	"fmt"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/pcap"
)

// snapLen is the maximum per-packet capture length: an Ethernet frame
// plus the largest IP header this module needs to inspect (the ICMP
// embedded-original case reads outer IP + ICMP + inner IP + inner TCP).
// 256 bytes comfortably covers every probe module's response.
const snapLen = 256

// Handle wraps a live pcap capture handle on one interface, grounded on
// malbeclabs-doublezero's PcapFlowConsumer (pcap.OpenLive +
// gopacket.NewPacketSource), adapted here from one-shot offline replay to
// a continuous live-capture loop that feeds Classifier.HandlePacket.
type Handle struct {
	handle *pcap.Handle
	source *gopacket.PacketSource
}

// OpenLive opens iface for live capture with a BPF filter selecting only
// the protocols this scanner's probe modules can validate (TCP and ICMP).
func OpenLive(iface string) (*Handle, error) {
	handle, err := pcap.OpenLive(iface, snapLen, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("recvengine: open %s: %w", iface, err)
	}
	if err := handle.SetBPFFilter("tcp or icmp"); err != nil {
		handle.Close()
		return nil, fmt.Errorf("recvengine: set bpf filter: %w", err)
	}
	return &Handle{
		handle: handle,
		source: gopacket.NewPacketSource(handle, handle.LinkType()),
	}, nil
}

// Stats returns the underlying pcap handle's dropped-packet counters
// (zrecv.pcap_drop / zrecv.pcap_ifdrop in spec.md section 3).
func (h *Handle) Stats() (capDrop, ifDrop uint64, err error) {
	stats, err := h.handle.Stats()
	if err != nil {
		return 0, 0, err
	}
	return uint64(stats.PacketsDropped), uint64(stats.PacketsIfDropped), nil
}

// Close releases the capture handle.
func (h *Handle) Close() {
	h.handle.Close()
}

// Run feeds every captured packet's raw bytes to classify until the
// handle is closed or stop reports true. It is the receive thread's main
// loop (recv.c's recv_packets, called in a loop by recv_run).
func (h *Handle) Run(stop func() bool, classify func(raw []byte)) {
	for packet := range h.source.Packets() {
		if stop() {
			return
		}
		classify(packet.Data())
	}
}
