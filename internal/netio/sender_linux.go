//go:build linux

package netio

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// PacketSocket sends pre-built Ethernet frames on a fixed interface via an
// AF_PACKET/SOCK_RAW socket, the same send path ZMap itself uses: the
// probe module owns framing entirely, and the kernel does no header
// rewriting on the way out.
//
// The socket-configuration style here (open, resolve the interface,
// configure via golang.org/x/sys/unix, defer cleanup on any setup error)
// is grounded on the teacher's NewSingleHopListener/listenUDP constructors
// (internal/netio/rawsock_linux.go in the BFD daemon this module is
// adapted from), adapted from a bound UDP socket to an AF_PACKET send
// socket bound to a single ifindex via sockaddr_ll.
type PacketSocket struct {
	fd      int
	ifIndex int
}

// NewPacketSocket opens an AF_PACKET/SOCK_RAW socket bound to ifName, for
// sending fully-formed Ethernet frames.
func NewPacketSocket(ifName string) (*PacketSocket, error) {
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("netio: resolve interface %q: %w", ifName, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("netio: open AF_PACKET socket: %w", err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netio: bind AF_PACKET socket to %q: %w", ifName, err)
	}

	// SO_SNDBUF is raised generously: at full Internet-scan rates the
	// send threads can momentarily outrun the kernel's default buffer.
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 4<<20); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netio: set SO_SNDBUF: %w", err)
	}

	return &PacketSocket{fd: fd, ifIndex: iface.Index}, nil
}

// Send writes buf, a complete Ethernet frame, to the bound interface.
func (p *PacketSocket) Send(buf []byte) error {
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  p.ifIndex,
	}
	if err := unix.Sendto(p.fd, buf, 0, sa); err != nil {
		return fmt.Errorf("netio: sendto: %w", err)
	}
	return nil
}

// Close releases the underlying socket.
func (p *PacketSocket) Close() error {
	if err := unix.Close(p.fd); err != nil {
		return fmt.Errorf("netio: close AF_PACKET socket: %w", err)
	}
	return nil
}

func htons(v int) uint16 {
	return uint16(v>>8) | uint16(v<<8)
}
