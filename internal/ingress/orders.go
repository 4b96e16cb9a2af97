package ingress

import (
	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// OrderCreated is the §6 order.created inbound event: begin dispatch
// eligibility for a new order.
type OrderCreated struct {
	Order *fleet.Order
}

func (e OrderCreated) validate() error {
	if e.Order == nil {
		return &ValidationError{Event: "order.created", Field: "order", Message: "missing"}
	}
	var o = e.Order
	if o.ID == "" {
		return &ValidationError{Event: "order.created", Field: "id", Message: "empty"}
	}
	if o.ServiceType != fleet.ServiceTypeBarq && o.ServiceType != fleet.ServiceTypeBullet {
		return &ValidationError{Event: "order.created", Field: "service_type", Message: "unrecognized: " + string(o.ServiceType)}
	}
	if o.LoadKg <= 0 {
		return &ValidationError{Event: "order.created", Field: "load_kg", Message: "must be positive"}
	}
	if o.SLADeadline.IsZero() {
		return &ValidationError{Event: "order.created", Field: "sla_deadline", Message: "missing"}
	}
	if !o.SLADeadline.After(o.CreatedAt) {
		return &ValidationError{Event: "order.created", Field: "sla_deadline", Message: "must be after created_at"}
	}
	if o.Status != "" && o.Status != fleet.OrderPending {
		return &ValidationError{Event: "order.created", Field: "status", Message: "new orders must start pending"}
	}
	return nil
}

// HandleOrderCreated validates and admits a new order. Dispatch and
// batching pick it up on their next tick; this handler does not itself
// attempt an assignment.
func (a *Adapter) HandleOrderCreated(e OrderCreated) error {
	if err := e.validate(); err != nil {
		return err
	}
	var o = e.Order.Clone()
	o.Status = fleet.OrderPending
	a.orders.Put(o)
	return nil
}

// OrderCancelled is the §6 order.cancelled inbound event.
type OrderCancelled struct {
	OrderID string
}

func (e OrderCancelled) validate() error {
	if e.OrderID == "" {
		return &ValidationError{Event: "order.cancelled", Field: "order_id", Message: "empty"}
	}
	return nil
}

// HandleOrderCancelled terminates an order, frees its driver if one was
// assigned, and tells the batching engine so a grouped order's batch stays
// consistent (§4.3's resolved Open Question on mid-route cancellation).
func (a *Adapter) HandleOrderCancelled(e OrderCancelled) error {
	if err := e.validate(); err != nil {
		return err
	}

	var now = a.clock.Now()
	var before, err = a.orders.Get(e.OrderID)
	if err != nil {
		return &ValidationError{Event: "order.cancelled", Field: "order_id", Message: "unknown order " + e.OrderID}
	}
	if before.Status.IsTerminal() {
		return &ValidationError{Event: "order.cancelled", Field: "order_id", Message: "order already terminal: " + string(before.Status)}
	}

	var nonTerminal = []fleet.OrderStatus{
		fleet.OrderPending, fleet.OrderPendingDriver, fleet.OrderAssigned, fleet.OrderPickedUp,
	}
	var updated, cerr = a.orders.CompareAndUpdate(e.OrderID, nonTerminal, func(o *fleet.Order) error {
		o.Status = fleet.OrderCancelled
		return nil
	})
	if cerr != nil {
		return cerr
	}

	if before.DriverID != "" {
		a.freeDriver(before.DriverID, before.ID, "order_cancelled")
	}
	if before.BatchID != "" {
		if err := a.batches.OnOrderCancelled(before.BatchID, before.ID, now); err != nil {
			a.log.Log(log.WarnLevel, log.Fields{"order_id": before.ID, "batch_id": before.BatchID, "error": err.Error()}, "batch notification failed for cancelled order")
		}
	}

	return a.escalation.OnOrderTerminated(updated, now)
}

// freeDriver detaches orderID from driverID's active-order list and
// returns the driver to AVAILABLE if it has nothing else in flight.
func (a *Adapter) freeDriver(driverID, orderID, reason string) {
	var stillBusy bool
	_ = a.drivers.WithDriver(driverID, func(d *fleet.Driver) error {
		d.ActiveOrderIDs = removeID(d.ActiveOrderIDs, orderID)
		stillBusy = len(d.ActiveOrderIDs) > 0
		return nil
	})
	if !stillBusy {
		if _, err := a.drivers.TryTransition(driverID, fleet.DriverAvailable, reason, "ingress"); err != nil {
			a.log.Log(log.WarnLevel, log.Fields{"driver_id": driverID, "error": err.Error()}, "driver did not return to available")
		}
	}
}

func removeID(ids []string, target string) []string {
	var out = make([]string, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
