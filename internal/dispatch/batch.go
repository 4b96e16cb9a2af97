package dispatch

import (
	"context"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// DispatchBatch runs the candidate/offer/commit sequence for a PENDING
// batch as one work item, per §4.2: "Batching may pre-produce a batch; if
// so, dispatch treats the batch as a single unit with its first pickup as
// the anchor location." orders must be the batch's member orders, in the
// same order as batch.OrderIDs; the earliest SLA deadline among them
// governs force-assign eligibility.
func (e *Dispatcher) DispatchBatch(ctx context.Context, batch *fleet.Batch, orders []*fleet.Order) {
	if len(orders) == 0 {
		return
	}

	var anchor = orders[0].Pickup
	var earliest = orders[0].SLADeadline
	var combinedLoad float64
	var orderIDs = make([]string, 0, len(orders))

	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
		combinedLoad += o.LoadKg
		if o.SLADeadline.Before(earliest) {
			earliest = o.SLADeadline
		}
	}

	e.dispatchOne(ctx, batch.ID, orderIDs, batch.ServiceType, anchor, combinedLoad, earliest, batch.ID)
}
