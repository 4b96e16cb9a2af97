// Package dispatch implements the scored order-to-driver matching engine
// of spec §4.2: candidate search, weighted scoring, offer leases with
// timeout/cooldown, force-assign under SLA pressure, and an all-or-nothing
// commit with retry.
//
// The package depends on the rest of the engine only through small
// interfaces (OrderStore, DriverMachine, RouteTrigger, AuditSink) rather
// than concrete engine types, the same narrow-contract style the teacher
// uses for its storage and broker dependencies (go/consumer/store.go's
// consumer.Store boundary) — internal/engine supplies concrete
// implementations (OrderTable, statemachine.Machine, WorkerPool,
// sqlite.Store) that satisfy these structurally.
package dispatch

import (
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// OrderStore is the subset of engine.OrderTable that Dispatch needs.
type OrderStore interface {
	Get(id string) (*fleet.Order, error)
	All() []*fleet.Order
	CompareAndUpdate(orderID string, expected []fleet.OrderStatus, fn func(o *fleet.Order) error) (*fleet.Order, error)
}

// DriverMachine is the subset of statemachine.Machine that Dispatch needs.
type DriverMachine interface {
	Snapshot(driverID string) (*fleet.Driver, error)
	All() []*fleet.Driver
	TryTransition(driverID string, target fleet.DriverState, reason, actor string) (fleet.DriverState, error)
	WithDriver(driverID string, fn func(d *fleet.Driver) error) error
}

// RouteTrigger requests a route re-optimization for a driver whose active
// orders just changed — internal/engine's adapter over the bounded
// worker pool and internal/routing.Optimizer satisfies this.
type RouteTrigger interface {
	TriggerOptimization(driverID, reason string)
}

// AuditSink persists one append-only audit row — sqlite.Store.Append
// satisfies this.
type AuditSink interface {
	Append(table, entityID string, at time.Time, payload any) error
}
