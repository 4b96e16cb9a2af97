package escalation

import (
	"context"
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// OrderStore is the subset of engine.OrderTable this package needs.
type OrderStore interface {
	Get(id string) (*fleet.Order, error)
	All() []*fleet.Order
	CompareAndUpdate(orderID string, expected []fleet.OrderStatus, fn func(o *fleet.Order) error) (*fleet.Order, error)
}

// DriverMachine is the subset of statemachine.Machine this package needs.
type DriverMachine interface {
	Snapshot(driverID string) (*fleet.Driver, error)
	All() []*fleet.Driver
	TryTransition(driverID string, target fleet.DriverState, reason, actor string) (fleet.DriverState, error)
	WithDriver(driverID string, fn func(d *fleet.Driver) error) error
}

// RouteStore is the subset of engine.RouteTable this package needs, to
// check a driver's current ETA to a stop for the SLA_RISK_ASSIGNED trigger.
type RouteStore interface {
	ActiveFor(driverID string) (*fleet.Route, bool)
}

// RouteTrigger requests a route re-optimization for a driver whose active
// orders just changed — internal/engine's adapter over the bounded
// worker pool and internal/routing.Optimizer satisfies this.
type RouteTrigger interface {
	TriggerOptimization(driverID, reason string)
}

// ForceDispatcher is the single operation escalation needs from Dispatch:
// immediately re-run the assign sequence for one order, bypassing the
// normal tick cadence (§4.5's SLA_RISK_CRITICAL "Force-assign (§4.2)").
type ForceDispatcher interface {
	ForceDispatch(ctx context.Context, orderID string) error
}

// AuditSink persists one append-only audit row — sqlite.Store.Append
// satisfies this.
type AuditSink interface {
	Append(table, entityID string, at time.Time, payload any) error
}
