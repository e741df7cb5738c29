//go:build !linux

package netio

import "fmt"

// PacketSocket is the non-Linux placeholder for raw Ethernet frame
// sending. ZMap itself supports BSD via BPF devices; this module targets
// Linux's AF_PACKET path (sender_linux.go) and leaves BPF unimplemented
// rather than fabricating an untested backend.
type PacketSocket struct{}

// NewPacketSocket always fails on non-Linux platforms.
func NewPacketSocket(ifName string) (*PacketSocket, error) {
	return nil, fmt.Errorf("netio: raw packet sending is only implemented for linux (requested interface %q)", ifName)
}

func (p *PacketSocket) Send(buf []byte) error { return fmt.Errorf("netio: not implemented") }

func (p *PacketSocket) Close() error { return nil }
