package fleet

import "time"

// ServiceType is the delivery tier an order or driver serves.
type ServiceType string

const (
	ServiceTypeBarq   ServiceType = "BARQ"
	ServiceTypeBullet ServiceType = "BULLET"
)

// OrderStatus is the order lifecycle FSM of spec §4.5:
//
//	pending -> pending_driver? -> assigned -> picked_up -> delivered
//
// with terminal cancelled and failed reachable from any non-terminal state.
type OrderStatus string

const (
	OrderPending       OrderStatus = "pending"
	OrderPendingDriver OrderStatus = "pending_driver"
	OrderAssigned      OrderStatus = "assigned"
	OrderPickedUp      OrderStatus = "picked_up"
	OrderDelivered     OrderStatus = "delivered"
	OrderCancelled     OrderStatus = "cancelled"
	OrderFailed        OrderStatus = "failed"
)

// IsTerminal reports whether no further lifecycle transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled || s == OrderFailed
}

// CanHoldDriver reports whether an order in this status is allowed to carry
// a non-nil DriverID (invariant 1 of spec §8).
func (s OrderStatus) CanHoldDriver() bool {
	return s == OrderAssigned || s == OrderPickedUp
}

// Order is a single delivery request with an SLA deadline.
type Order struct {
	ID          string
	ServiceType ServiceType
	Pickup      GeoPoint
	Dropoff     GeoPoint
	LoadKg      float64
	Priority    int

	CreatedAt    time.Time
	SLADeadline  time.Time
	Status       OrderStatus
	DriverID     string // empty unless Status.CanHoldDriver()
	BatchID      string // empty unless currently batched

	PickupAt    *time.Time
	DeliveredAt *time.Time

	SLABreached       bool // latches true once now > SLADeadline while non-terminal
	ReassignmentCount int
}

// TimeToSLA returns the remaining time until the SLA deadline, which may be
// negative once breached.
func (o *Order) TimeToSLA(now time.Time) time.Duration {
	return o.SLADeadline.Sub(now)
}

// MarkBreachIfDue latches SLABreached per the invariant: "sla_breached is a
// latch, not a state; it can be true of any non-terminal or terminal
// status, and is set once now > sla_deadline while non-terminal".
func (o *Order) MarkBreachIfDue(now time.Time) {
	if !o.Status.IsTerminal() && now.After(o.SLADeadline) {
		o.SLABreached = true
	}
}

// Clone returns a deep-enough copy for snapshotting/CAS comparisons.
func (o *Order) Clone() *Order {
	var c = *o
	if o.PickupAt != nil {
		var t = *o.PickupAt
		c.PickupAt = &t
	}
	if o.DeliveredAt != nil {
		var t = *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}
