package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/obs"
	"github.com/ridrisa/barq-dispatch-core/internal/routing"
	"github.com/ridrisa/barq-dispatch-core/internal/statemachine"
)

// routeTrigger is the concrete internal/dispatch.RouteTrigger and
// internal/escalation.RouteTrigger: both packages only know that a
// driver's active orders just changed and hand the actual stop-building
// and internal/routing.Optimizer.Optimize call off to here, run on the
// shared bounded worker pool so a slow optimization for one driver cannot
// starve dispatch/escalation ticks for others (§5).
type routeTrigger struct {
	orders    *OrderTable
	routes    *RouteTable
	incidents *IncidentTable
	drivers   *statemachine.Machine
	optimizer *routing.Optimizer
	pool      *WorkerPool
	log       obs.Logger
}

// TriggerOptimization rebuilds driverID's stop set from its currently
// active orders and re-optimizes its route (§4.2 step 3: "append the
// order to the driver's active route, trigger a Route Optimizer run").
// This is also what seeds a driver's first-ever active Route, so the
// periodic re-optimization loop has something to pick up on later ticks.
func (t *routeTrigger) TriggerOptimization(driverID, reason string) {
	t.pool.Submit(driverID, func(context.Context) {
		var d, err = t.drivers.Snapshot(driverID)
		if err != nil {
			t.log.Log(log.WarnLevel, log.Fields{"driver_id": driverID, "error": err.Error()}, "route trigger: driver snapshot failed")
			return
		}

		var stops = t.buildStops(d)
		if len(stops) == 0 {
			t.routes.Deactivate(driverID)
			return
		}

		if err := t.optimizer.Optimize(driverID, d.CurrentLocation, stops, primaryTier(d), t.incidents.Active(), reason); err != nil {
			t.log.Log(log.DebugLevel, log.Fields{"driver_id": driverID, "error": err.Error()}, "route optimization declined")
		}
	})
}

// buildStops converts a driver's active orders into the PICKUP/DELIVERY
// stop pairs the optimizer works over: an order still ASSIGNED needs both
// its pickup and delivery visited, one already PICKED_UP only its
// delivery (§4.4's precedence-aware tour only ever sees unvisited stops).
func (t *routeTrigger) buildStops(d *fleet.Driver) []fleet.Stop {
	var stops []fleet.Stop
	for _, orderID := range d.ActiveOrderIDs {
		var o, err = t.orders.Get(orderID)
		if err != nil {
			continue
		}
		switch o.Status {
		case fleet.OrderAssigned:
			stops = append(stops, fleet.Stop{OrderID: o.ID, Kind: fleet.StopPickup, Coord: o.Pickup})
			stops = append(stops, fleet.Stop{OrderID: o.ID, Kind: fleet.StopDelivery, Coord: o.Dropoff})
		case fleet.OrderPickedUp:
			stops = append(stops, fleet.Stop{OrderID: o.ID, Kind: fleet.StopDelivery, Coord: o.Dropoff})
		}
	}
	return stops
}
