package escalation

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/dispatch"
	"github.com/ridrisa/barq-dispatch-core/internal/events"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/obs"
)

// reassignmentEvent is one row of the reassignment_events audit stream
// (§6).
type reassignmentEvent struct {
	OrderID    string  `json:"order_id"`
	FromDriver string  `json:"from_driver"`
	ToDriver   string  `json:"to_driver"`
	Reason     string  `json:"reason"`
	Score      float64 `json:"score"`
}

// reassign implements §4.5's reassignment rules: find a replacement
// driver (excluding the current one, boosted zone/performance weights),
// then atomically move the order and both drivers.
func (e *Engine) reassign(ctx context.Context, o *fleet.Order, reason string, now time.Time) bool {
	if o.ReassignmentCount >= e.cfg.MaxReassignments {
		e.bus.DispatchAlert.Publish(events.DispatchAlert{
			Severity: "HIGH",
			Type:     "REASSIGNMENT_CAP_EXCEEDED",
			OrderID:  o.ID,
			Message:  fmt.Sprintf("order %s hit its reassignment cap (%d)", o.ID, e.cfg.MaxReassignments),
			At:       now,
		})
		return false
	}

	var candidates []dispatch.Candidate
	for _, d := range e.drivers.All() {
		if d.ID == o.DriverID {
			continue
		}
		if !d.CanAccept() || !d.ServesType(o.ServiceType) {
			continue
		}
		var distanceKm = fleet.Haversine(d.CurrentLocation, o.Pickup)
		if distanceKm > e.cfg.ReassignRadiusKm {
			continue
		}
		var currentLoad = d.CurrentLoadKg(e.orderLoadKg)
		if d.CapacityKg-currentLoad < o.LoadKg {
			continue
		}
		var overlap = e.zones.Overlaps(d.ID, o.Pickup)
		candidates = append(candidates, dispatch.ScoreCandidate(d, o.Pickup, distanceKm, e.cfg.ReassignRadiusKm, currentLoad, overlap, e.cfg.ReassignWeights))
	}

	if len(candidates) == 0 {
		return false
	}
	dispatch.RankCandidates(candidates)
	var chosen = candidates[0]

	var oldDriver = o.DriverID
	var err = withCommitRetry(ctx, func() error {
		return e.commitReassignment(o.ID, oldDriver, chosen.DriverID, reason, o.ServiceType, o.Pickup, chosen.Score, now)
	})
	if err != nil {
		e.log.Log(log.ErrorLevel, log.Fields{"order_id": o.ID, "error": err.Error()}, "reassignment commit exhausted retries")
		e.bus.DispatchAlert.Publish(events.DispatchAlert{
			Severity: "CRITICAL",
			Type:     "REASSIGNMENT_COMMIT_FAILED",
			OrderID:  o.ID,
			Message:  err.Error(),
			At:       now,
		})
		return false
	}
	return true
}

func (e *Engine) commitReassignment(orderID, oldDriver, newDriver, reason string, tier fleet.ServiceType, anchor fleet.GeoPoint, score float64, now time.Time) error {
	if _, err := e.drivers.TryTransition(newDriver, fleet.DriverBusy, "reassigned_to", "escalation"); err != nil {
		return fmt.Errorf("transitioning new driver busy: %w", err)
	}

	var _, err = e.orders.CompareAndUpdate(orderID, []fleet.OrderStatus{fleet.OrderAssigned, fleet.OrderPickedUp}, func(o *fleet.Order) error {
		o.DriverID = newDriver
		o.ReassignmentCount++
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating order %s: %w", orderID, err)
	}

	if _, err := e.drivers.TryTransition(oldDriver, fleet.DriverAvailable, "reassigned_away", "escalation"); err != nil {
		e.log.Log(log.WarnLevel, log.Fields{"driver_id": oldDriver, "error": err.Error()}, "old driver did not return to available after reassignment")
	}

	if err := e.drivers.WithDriver(oldDriver, func(d *fleet.Driver) error {
		d.ActiveOrderIDs = removeOrderID(d.ActiveOrderIDs, orderID)
		return nil
	}); err != nil {
		e.log.Log(log.WarnLevel, log.Fields{"driver_id": oldDriver, "error": err.Error()}, "failed detaching order from old driver")
	}
	if err := e.drivers.WithDriver(newDriver, func(d *fleet.Driver) error {
		d.ActiveOrderIDs = append(d.ActiveOrderIDs, orderID)
		return nil
	}); err != nil {
		return fmt.Errorf("attaching order to new driver: %w", err)
	}

	e.zones.Record(newDriver, anchor)

	var entry = reassignmentEvent{OrderID: orderID, FromDriver: oldDriver, ToDriver: newDriver, Reason: reason, Score: score}
	if err := e.audit.Append("reassignment_events", orderID, now, entry); err != nil {
		return fmt.Errorf("writing reassignment_event: %w", err)
	}

	obs.DispatchAssignedTotal.WithLabelValues(string(tier), "REASSIGNED").Inc()
	e.bus.OrderAssigned.Publish(events.OrderAssigned{OrderID: orderID, DriverID: newDriver, Score: score, AssignmentType: "REASSIGNED", At: now})
	e.bus.OrderReassigned.Publish(events.OrderReassigned{OrderID: orderID, OldDriverID: oldDriver, NewDriverID: newDriver, Reason: reason, At: now})

	e.routes.TriggerOptimization(oldDriver, "reassigned_away")
	e.routes.TriggerOptimization(newDriver, "reassigned_to")

	return nil
}

// orderLoadKg looks up an order's load by id for fleet.Driver.CurrentLoadKg's
// accumulation over a driver's ActiveOrderIDs; a lookup failure contributes
// no load rather than aborting the candidate scan.
func (e *Engine) orderLoadKg(orderID string) float64 {
	var o, err = e.orders.Get(orderID)
	if err != nil {
		return 0
	}
	return o.LoadKg
}

func removeOrderID(ids []string, target string) []string {
	var out = make([]string, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
