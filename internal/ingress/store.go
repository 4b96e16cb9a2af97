package ingress

import (
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// OrderSink is the subset of engine.OrderTable this package needs.
type OrderSink interface {
	Put(o *fleet.Order)
	Get(id string) (*fleet.Order, error)
	CompareAndUpdate(orderID string, expected []fleet.OrderStatus, fn func(o *fleet.Order) error) (*fleet.Order, error)
}

// DriverSink is the subset of statemachine.Machine this package needs.
type DriverSink interface {
	Snapshot(driverID string) (*fleet.Driver, error)
	TryTransition(driverID string, target fleet.DriverState, reason, actor string) (fleet.DriverState, error)
	WithDriver(driverID string, fn func(d *fleet.Driver) error) error
	RecordDeliveryCompleted(driverID string, onTime bool) (autoBreak bool, err error)
}

// IncidentSink is the subset of engine.IncidentTable this package needs.
type IncidentSink interface {
	Put(i *fleet.TrafficIncident)
	Resolve(id string, now time.Time)
}

// BatchNotifier is the subset of batching.Engine this package needs to keep
// a batch's lifecycle consistent with its member orders' fates.
type BatchNotifier interface {
	OnOrderCancelled(batchID, orderID string, now time.Time) error
	OnOrderDelivered(batchID string, now time.Time) error
}

// EscalationNotifier is the subset of escalation.Engine this package needs
// to close the loop on an order's SLA-breach bookkeeping and to route a
// failed delivery into its category-driven recovery action.
type EscalationNotifier interface {
	OnOrderTerminated(o *fleet.Order, now time.Time) error
	OnDeliveryFailed(orderID string, category fleet.FailureCategory, notes string, now time.Time)
}
