// Package fieldset implements the per-response record the receive engine
// builds on packet acceptance and threads through classification, output
// filtering, and output dispatch (spec.md section 3, "Field set").
//
// A field set has no teacher precedent: none of the retrieved repos carry
// a dynamic, probe-module-declared record type, so this is built directly
// on a small ordered slice-of-any, the simplest idiomatic representation
// for "an ordered, named, arbitrarily-typed tuple" in Go. Every concrete
// consumer (internal/output/csv, internal/output/stdout) downstream
// accesses it through Schema and Get/Set rather than reflection.
package fieldset

import (
	"net/netip"
	"time"
)

// Kind identifies the Go type backing a field's value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindFloat
)

// FieldDef names one probe- or output-module-declared field.
type FieldDef struct {
	Name string
	Kind Kind
}

// Schema is a probe module's declared field list (spec.md section 4.4:
// "Declared: packet_length, name, field schema with distinguished
// success_index and optional app_success_index").
type Schema struct {
	Fields []FieldDef

	// SuccessIndex is the index of the boolean field read as is_success.
	SuccessIndex int

	// AppSuccessIndex is the index of an optional application-layer
	// success field; -1 if the probe module declares none.
	AppSuccessIndex int
}

// IndexOf returns the index of the named field, or -1 if not present.
func (s *Schema) IndexOf(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// System holds the fields every field set carries regardless of probe
// module, populated by the receive engine itself (spec.md's
// fs_add_system_fields).
type System struct {
	SourceIP   netip.Addr
	DestIP     netip.Addr
	SourcePort uint16
	DestPort   uint16
	Timestamp  time.Time

	// Repeat is true when this source address was already marked in the
	// seen bitmap before this response arrived.
	Repeat bool

	// Cooldown is true when this response arrived after the send side
	// finished but before the cooldown period elapsed.
	Cooldown bool

	// Classification is the probe module's textual classification label
	// (e.g. "synack", "rst"), independent of the boolean success field.
	Classification string
}

// Set is one field set: the system fields plus the probe module's
// declared, ordered probe-specific values. Owned exclusively by the
// receive thread that creates it (spec.md section 3).
type Set struct {
	System System

	schema *Schema
	values []any
}

// New allocates a field set against schema, with every declared value
// initialized to its kind's zero value.
func New(schema *Schema) *Set {
	values := make([]any, len(schema.Fields))
	for i, f := range schema.Fields {
		switch f.Kind {
		case KindString:
			values[i] = ""
		case KindInt:
			values[i] = int64(0)
		case KindBool:
			values[i] = false
		case KindFloat:
			values[i] = float64(0)
		}
	}
	return &Set{schema: schema, values: values}
}

// Schema returns the schema this set was constructed against.
func (s *Set) Schema() *Schema {
	return s.schema
}

// SetValue sets the value of the field at index i.
func (s *Set) SetValue(i int, v any) {
	s.values[i] = v
}

// Value returns the value of the field at index i.
func (s *Set) Value(i int) any {
	return s.values[i]
}

// IsSuccess reads the probe module's declared success_index field.
func (s *Set) IsSuccess() bool {
	v, _ := s.values[s.schema.SuccessIndex].(bool)
	return v
}

// AppSuccess reads the probe module's optional app_success_index field.
// ok is false if the probe module declared no such field.
func (s *Set) AppSuccess() (success bool, ok bool) {
	if s.schema.AppSuccessIndex < 0 {
		return false, false
	}
	v, _ := s.values[s.schema.AppSuccessIndex].(bool)
	return v, true
}

// Project returns the values named in fields, in that order, for an
// output module's declared projection (spec.md's "translate the field
// set through the output module's declared projection"). A name not in
// the schema and not a recognized system field name yields nil.
func (s *Set) Project(fields []string) []any {
	out := make([]any, len(fields))
	for i, name := range fields {
		out[i] = s.field(name)
	}
	return out
}

func (s *Set) field(name string) any {
	switch name {
	case "saddr":
		return s.System.SourceIP.String()
	case "daddr":
		return s.System.DestIP.String()
	case "sport":
		return s.System.SourcePort
	case "dport":
		return s.System.DestPort
	case "timestamp":
		return s.System.Timestamp
	case "repeat":
		return s.System.Repeat
	case "cooldown":
		return s.System.Cooldown
	case "classification":
		return s.System.Classification
	case "success":
		return s.IsSuccess()
	}
	if idx := s.schema.IndexOf(name); idx >= 0 {
		return s.values[idx]
	}
	return nil
}
