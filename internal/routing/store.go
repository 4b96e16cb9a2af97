package routing

import (
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// RouteStore is the subset of engine.RouteTable this package needs.
type RouteStore interface {
	ActiveFor(driverID string) (*fleet.Route, bool)
	Activate(newRoute *fleet.Route)
}

// AuditSink persists one append-only audit row — sqlite.Store.Append
// satisfies this.
type AuditSink interface {
	Append(table, entityID string, at time.Time, payload any) error
}
