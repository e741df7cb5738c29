package netio

import "sync"

// MemorySender is an in-memory Sender used by tests and dryrun mode: it
// records every buffer passed to Send instead of touching the network.
type MemorySender struct {
	mu   sync.Mutex
	sent [][]byte
}

// NewMemorySender returns an empty MemorySender.
func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (m *MemorySender) Send(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	m.sent = append(m.sent, cp)
	return nil
}

func (m *MemorySender) Close() error { return nil }

// Sent returns a copy of every buffer recorded so far.
func (m *MemorySender) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Count returns the number of buffers recorded so far.
func (m *MemorySender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
