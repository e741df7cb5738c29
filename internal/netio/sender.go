// Package netio provides the raw packet I/O backends the send engine
// writes probes through. The wire format is always a pre-built Ethernet
// frame; no sender here transmits bare IP packets. Probe modules are
// responsible for everything above this layer.
package netio

// Sender writes pre-built frames to the wire on one interface. A Sender
// is constructed once per process and shared read-only (Send itself may
// be called concurrently by every send thread; implementations must be
// safe for that).
type Sender interface {
	// Send transmits buf as-is; buf is a full Ethernet frame.
	Send(buf []byte) error

	// Close releases the underlying socket.
	Close() error
}
