// Package output declares the contract every output module implements
// (spec.md section 4.6): how to emit one translated record, and an
// optional periodic update hook fed live send/receive counters.
package output

import (
	"github.com/netreach/gozmap/internal/fieldset"
	"github.com/netreach/gozmap/internal/state"
)

// Module is the interface the receive engine dispatches accepted,
// filtered field sets through.
type Module interface {
	// Fields declares the projection passed to ProcessIP: the ordered
	// field-set field names this sink writes, per record.
	Fields() []string

	// ProcessIP emits one record, already projected through Fields().
	ProcessIP(values []any) error

	// Close flushes and releases any resources the module holds open.
	Close() error
}

// Updater is implemented by output modules that want a periodic snapshot
// of send/receive state (spec.md's "update(cfg, send_state, recv_state)"),
// invoked every UpdateInterval unique successes.
type Updater interface {
	Update(cfg *state.Config, send *state.SendState, recv *state.RecvState)
}

// Translate projects fs through mod's declared field list.
func Translate(fs *fieldset.Set, mod Module) []any {
	return fs.Project(mod.Fields())
}
