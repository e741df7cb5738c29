// Package csv implements an output module that writes each accepted
// record as one CSV row via encoding/csv, flushing after every record so
// a tailing consumer (e.g. "tail -f") sees results as they arrive.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Module writes translated field sets to an io.Writer as CSV.
type Module struct {
	w           *csv.Writer
	fields      []string
	wroteHeader bool
}

// New returns a CSV output module projecting the given fields, in order,
// as columns.
func New(w io.Writer, fields []string) *Module {
	return &Module{w: csv.NewWriter(w), fields: fields}
}

func (m *Module) Fields() []string { return m.fields }

func (m *Module) ProcessIP(values []any) error {
	if !m.wroteHeader {
		if err := m.w.Write(m.fields); err != nil {
			return fmt.Errorf("csv: write header: %w", err)
		}
		m.wroteHeader = true
	}

	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprint(v)
	}
	if err := m.w.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}
	m.w.Flush()
	return m.w.Error()
}

func (m *Module) Close() error {
	m.w.Flush()
	return m.w.Error()
}
