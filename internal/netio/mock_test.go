package netio_test

import (
	"testing"

	"github.com/netreach/gozmap/internal/netio"
)

func TestMemorySenderRecordsAndCopies(t *testing.T) {
	m := netio.NewMemorySender()
	buf := []byte{1, 2, 3}

	if err := m.Send(buf); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf[0] = 0xff // mutate caller's slice after Send returns

	sent := m.Sent()
	if len(sent) != 1 {
		t.Fatalf("Sent() returned %d buffers, want 1", len(sent))
	}
	if sent[0][0] != 1 {
		t.Fatalf("MemorySender did not copy the buffer at Send time; got %v", sent[0])
	}
	if m.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", m.Count())
	}
}
