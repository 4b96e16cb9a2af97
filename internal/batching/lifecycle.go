package batching

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/events"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/obs"
)

// Engine is the §4.3 Smart Batching Engine.
type Engine struct {
	orders  OrderStore
	batches BatchStore
	bus     *events.Bus
	clock   fleet.Clock
	cfg     Config
	log     obs.Logger
}

func New(orders OrderStore, batches BatchStore, bus *events.Bus, clock fleet.Clock, cfg Config) *Engine {
	return &Engine{
		orders: orders, batches: batches, bus: bus,
		clock: clock, cfg: cfg, log: obs.Component("batching"),
	}
}

// Tick runs one clustering pass over every pending/pending_driver order
// not already in a batch, per §4.3's "periodic tick scanning orders with
// status pending or pending_driver".
func (e *Engine) Tick() {
	var candidates []*fleet.Order
	for _, o := range e.orders.All() {
		if o.BatchID != "" {
			continue
		}
		if o.Status == fleet.OrderPending || o.Status == fleet.OrderPendingDriver {
			candidates = append(candidates, o)
		}
	}

	if len(candidates) == 0 {
		return
	}

	var now = e.clock.Now()
	for _, members := range Cluster(candidates, e.cfg, e.clock) {
		e.emitBatch(members, now)
	}
}

// emitBatch creates a PENDING batch for a cluster and links every member
// order to it (§4.3 Emission).
func (e *Engine) emitBatch(members []*fleet.Order, now time.Time) {
	var batch = &fleet.Batch{
		ID:          uuid.NewString(),
		ServiceType: members[0].ServiceType,
		Status:      fleet.BatchPending,
		CreatedAt:   now,
	}

	var orderIDs = make([]string, 0, len(members))
	for _, o := range members {
		orderIDs = append(orderIDs, o.ID)
	}
	batch.OrderIDs = orderIDs

	e.batches.Put(batch)

	for _, id := range orderIDs {
		var _, err = e.orders.CompareAndUpdate(id, []fleet.OrderStatus{fleet.OrderPending, fleet.OrderPendingDriver}, func(o *fleet.Order) error {
			o.BatchID = batch.ID
			return nil
		})
		if err != nil {
			e.log.Log(log.WarnLevel, log.Fields{"batch_id": batch.ID, "order_id": id, "error": err.Error()}, "failed linking order to batch, continuing with remainder")
		}
	}

	obs.BatchCreatedTotal.WithLabelValues(string(batch.ServiceType)).Inc()
	e.bus.BatchCreated.Publish(events.BatchCreated{BatchID: batch.ID, OrderIDs: orderIDs, At: now})
}

// OnOrderDelivered advances a batch's lifecycle once one of its member
// orders is delivered, per §4.3's lifecycle invariants: "once any order
// in a batch is delivered, the batch moves to IN_PROGRESS; when every
// order is delivered or cancelled, the batch auto-completes."
func (e *Engine) OnOrderDelivered(batchID string, now time.Time) error {
	var b, err = e.batches.Update(batchID, func(b *fleet.Batch) error {
		if b.Status == fleet.BatchPending || b.Status == fleet.BatchAssigned {
			b.Status = fleet.BatchInProgress
		}
		return nil
	})
	if err != nil {
		return err
	}

	if e.allTerminal(b) {
		e.complete(b, now)
	}
	return nil
}

// OnOrderCancelled implements the resolved Open Question (§9/DESIGN.md):
// a mid-route cancellation removes the order from the batch's member
// list; the remaining orders continue as an ordinary route. If the
// remainder drops to size 1 the batch is marked CANCELLED for
// bookkeeping — the surviving order simply stops being "batched" — and a
// batch.degraded condition is logged and alerted so operators can see
// the batch lost its grouping benefit without the order itself being
// affected.
func (e *Engine) OnOrderCancelled(batchID, orderID string, now time.Time) error {
	var b, err = e.batches.Update(batchID, func(b *fleet.Batch) error {
		b.OrderIDs = removeID(b.OrderIDs, orderID)
		return nil
	})
	if err != nil {
		return err
	}

	if len(b.OrderIDs) == 1 {
		if _, err := e.batches.Update(batchID, func(b *fleet.Batch) error {
			b.Status = fleet.BatchCancelled
			return nil
		}); err != nil {
			return err
		}
		if survivor, err := e.orders.Get(b.OrderIDs[0]); err == nil && (survivor.Status == fleet.OrderPending || survivor.Status == fleet.OrderPendingDriver) {
			_, _ = e.orders.CompareAndUpdate(survivor.ID, []fleet.OrderStatus{fleet.OrderPending, fleet.OrderPendingDriver}, func(o *fleet.Order) error {
				o.BatchID = ""
				return nil
			})
		}
		e.log.Log(log.WarnLevel, log.Fields{"batch_id": batchID, "order_id": b.OrderIDs[0]}, "batch degraded to single order after cancellation, dispatch will treat it individually")
		e.bus.DispatchAlert.Publish(events.DispatchAlert{
			Severity: "LOW",
			Type:     "BATCH_DEGRADED",
			OrderID:  b.OrderIDs[0],
			Message:  "batch " + batchID + " dropped to one surviving order after a mid-route cancellation",
			At:       now,
		})
		return nil
	}

	if len(b.OrderIDs) == 0 {
		e.complete(b, now)
	}
	return nil
}

func (e *Engine) allTerminal(b *fleet.Batch) bool {
	for _, id := range b.OrderIDs {
		o, err := e.orders.Get(id)
		if err != nil {
			continue
		}
		if !o.Status.IsTerminal() {
			return false
		}
	}
	return true
}

func (e *Engine) complete(b *fleet.Batch, now time.Time) {
	var allCancelled = true
	for _, id := range b.OrderIDs {
		o, err := e.orders.Get(id)
		if err == nil && o.Status != fleet.OrderCancelled {
			allCancelled = false
		}
	}

	var final = fleet.BatchCompleted
	if allCancelled && len(b.OrderIDs) > 0 {
		final = fleet.BatchCancelled
	}

	if _, err := e.batches.Update(b.ID, func(b *fleet.Batch) error {
		b.Status = final
		return nil
	}); err != nil {
		e.log.Log(log.ErrorLevel, log.Fields{"batch_id": b.ID, "error": err.Error()}, "failed finalizing batch status")
		return
	}

	e.bus.BatchCompleted.Publish(events.BatchCompleted{BatchID: b.ID, At: now})
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
