// Package stdout implements an output module that renders accepted
// records as an aligned table via text/tabwriter, the same formatting
// approach the teacher's control-plane CLI used for session tables.
package stdout

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
)

// Module writes translated field sets as a live-updating, tab-aligned
// table. Safe for concurrent ProcessIP calls, though the receive engine
// is single-threaded and never needs that in practice.
type Module struct {
	mu     sync.Mutex
	tw     *tabwriter.Writer
	fields []string
	header bool
}

// New returns a stdout table output module projecting the given fields
// as columns.
func New(w io.Writer, fields []string) *Module {
	return &Module{
		tw:     tabwriter.NewWriter(w, 0, 4, 2, ' ', 0),
		fields: fields,
	}
}

func (m *Module) Fields() []string { return m.fields }

func (m *Module) ProcessIP(values []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.header {
		fmt.Fprintln(m.tw, strings.ToUpper(strings.Join(m.fields, "\t")))
		m.header = true
	}

	cols := make([]string, len(values))
	for i, v := range values {
		cols[i] = fmt.Sprint(v)
	}
	if _, err := fmt.Fprintln(m.tw, strings.Join(cols, "\t")); err != nil {
		return err
	}
	return m.tw.Flush()
}

func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tw.Flush()
}
