package stdout_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/netreach/gozmap/internal/output/stdout"
)

func TestProcessIPRendersAlignedTable(t *testing.T) {
	var buf bytes.Buffer
	m := stdout.New(&buf, []string{"saddr", "classification"})

	if err := m.ProcessIP([]any{"192.0.2.1", "synack"}); err != nil {
		t.Fatalf("ProcessIP: %v", err)
	}
	if err := m.ProcessIP([]any{"192.0.2.200", "rst"}); err != nil {
		t.Fatalf("ProcessIP: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "SADDR") {
		t.Fatalf("output missing uppercased header: %q", out)
	}
	if !strings.Contains(out, "192.0.2.1") || !strings.Contains(out, "192.0.2.200") {
		t.Fatalf("output missing both rows: %q", out)
	}
}
