package ingress

import (
	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// DeliveryPickup is the §6 delivery.pickup inbound event.
type DeliveryPickup struct {
	OrderID string
}

func (e DeliveryPickup) validate() error {
	if e.OrderID == "" {
		return &ValidationError{Event: "delivery.pickup", Field: "order_id", Message: "empty"}
	}
	return nil
}

// HandleDeliveryPickup advances an order from ASSIGNED to PICKED_UP.
func (a *Adapter) HandleDeliveryPickup(e DeliveryPickup) error {
	if err := e.validate(); err != nil {
		return err
	}
	var now = a.clock.Now()
	var _, err = a.orders.CompareAndUpdate(e.OrderID, []fleet.OrderStatus{fleet.OrderAssigned}, func(o *fleet.Order) error {
		o.Status = fleet.OrderPickedUp
		o.PickupAt = &now
		return nil
	})
	if err != nil {
		return &ValidationError{Event: "delivery.pickup", Field: "order_id", Message: err.Error()}
	}
	return nil
}

// DeliveryCompleted is the §6 delivery.completed inbound event.
type DeliveryCompleted struct {
	OrderID string
	OnTime  bool
}

func (e DeliveryCompleted) validate() error {
	if e.OrderID == "" {
		return &ValidationError{Event: "delivery.completed", Field: "order_id", Message: "empty"}
	}
	return nil
}

// HandleDeliveryCompleted advances an order to DELIVERED, frees the driver
// if it has nothing else active, then applies the driver's post-delivery
// bookkeeping (§4.1: consecutive-deliveries counter, on-time rate,
// mandatory break once the driver is AVAILABLE again), and closes out the
// order's batch and SLA-breach bookkeeping.
func (a *Adapter) HandleDeliveryCompleted(e DeliveryCompleted) error {
	if err := e.validate(); err != nil {
		return err
	}

	var now = a.clock.Now()
	var before, err = a.orders.Get(e.OrderID)
	if err != nil {
		return &ValidationError{Event: "delivery.completed", Field: "order_id", Message: "unknown order " + e.OrderID}
	}

	var updated, cerr = a.orders.CompareAndUpdate(e.OrderID, []fleet.OrderStatus{fleet.OrderPickedUp}, func(o *fleet.Order) error {
		o.Status = fleet.OrderDelivered
		o.DeliveredAt = &now
		return nil
	})
	if cerr != nil {
		return &ValidationError{Event: "delivery.completed", Field: "order_id", Message: cerr.Error()}
	}

	if before.DriverID != "" {
		a.freeDriver(before.DriverID, before.ID, "delivery_completed")
		if _, err := a.drivers.RecordDeliveryCompleted(before.DriverID, e.OnTime); err != nil {
			a.log.Log(log.WarnLevel, log.Fields{"driver_id": before.DriverID, "error": err.Error()}, "post-delivery bookkeeping failed")
		}
	}

	if before.BatchID != "" {
		if err := a.batches.OnOrderDelivered(before.BatchID, now); err != nil {
			a.log.Log(log.WarnLevel, log.Fields{"order_id": before.ID, "batch_id": before.BatchID, "error": err.Error()}, "batch notification failed for delivered order")
		}
	}

	return a.escalation.OnOrderTerminated(updated, now)
}

// DeliveryFailed is the §6 delivery.failed inbound event.
type DeliveryFailed struct {
	OrderID  string
	Category fleet.FailureCategory
	Notes    string
}

var knownFailureCategories = map[fleet.FailureCategory]bool{
	fleet.FailureTransient:       true,
	fleet.FailureRecipientAbsent: true,
	fleet.FailureAddressIssue:    true,
	fleet.FailureRefused:         true,
}

func (e DeliveryFailed) validate() error {
	if e.OrderID == "" {
		return &ValidationError{Event: "delivery.failed", Field: "order_id", Message: "empty"}
	}
	if !knownFailureCategories[e.Category] {
		return &ValidationError{Event: "delivery.failed", Field: "category", Message: "unrecognized: " + string(e.Category)}
	}
	return nil
}

// HandleDeliveryFailed moves an order to FAILED and hands the category off
// to escalation's category-driven recovery action (§4.5 FAILED_DELIVERY).
func (a *Adapter) HandleDeliveryFailed(e DeliveryFailed) error {
	if err := e.validate(); err != nil {
		return err
	}

	var now = a.clock.Now()
	var before, err = a.orders.Get(e.OrderID)
	if err != nil {
		return &ValidationError{Event: "delivery.failed", Field: "order_id", Message: "unknown order " + e.OrderID}
	}

	var nonTerminal = []fleet.OrderStatus{fleet.OrderPending, fleet.OrderPendingDriver, fleet.OrderAssigned, fleet.OrderPickedUp}
	var updated, cerr = a.orders.CompareAndUpdate(e.OrderID, nonTerminal, func(o *fleet.Order) error {
		o.Status = fleet.OrderFailed
		return nil
	})
	if cerr != nil {
		return &ValidationError{Event: "delivery.failed", Field: "order_id", Message: cerr.Error()}
	}

	if before.DriverID != "" {
		a.freeDriver(before.DriverID, before.ID, "delivery_failed")
	}
	if before.BatchID != "" {
		if err := a.batches.OnOrderCancelled(before.BatchID, before.ID, now); err != nil {
			a.log.Log(log.WarnLevel, log.Fields{"order_id": before.ID, "batch_id": before.BatchID, "error": err.Error()}, "batch notification failed for failed delivery")
		}
	}

	if err := a.escalation.OnOrderTerminated(updated, now); err != nil {
		return err
	}
	a.escalation.OnDeliveryFailed(e.OrderID, e.Category, e.Notes, now)
	return nil
}
