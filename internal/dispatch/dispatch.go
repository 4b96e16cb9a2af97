package dispatch

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/events"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/obs"
)

// AssignmentLog is one row of the assignment_logs audit stream (§6),
// carrying all four sub-scores and the total so an operator can see why a
// driver was chosen.
type AssignmentLog struct {
	OrderID        string
	DriverID       string
	BatchID        string
	Proximity      float64
	Performance    float64
	Capacity       float64
	Zone           float64
	Score          float64
	AssignmentType string // "NORMAL" | "FORCE_ASSIGNED"
	RadiusKmUsed   float64
	At             time.Time
}

// Dispatcher is the §4.2 Dispatch Engine.
type Dispatcher struct {
	orders   OrderStore
	drivers  DriverMachine
	routes   RouteTrigger
	audit    AuditSink
	bus      *events.Bus
	zones    *ZoneCache
	offers   *OfferBook
	decider  OfferDecider
	distance fleet.DistanceProvider
	clock    fleet.Clock
	cfg      Config
	log      obs.Logger
}

// New constructs a Dispatcher. zones and offers are owned by the caller
// (internal/engine) so they can be shared across dispatch ticks without
// being recreated.
func New(
	orders OrderStore,
	drivers DriverMachine,
	routes RouteTrigger,
	audit AuditSink,
	bus *events.Bus,
	zones *ZoneCache,
	offers *OfferBook,
	decider OfferDecider,
	distance fleet.DistanceProvider,
	clock fleet.Clock,
	cfg Config,
) *Dispatcher {
	return &Dispatcher{
		orders: orders, drivers: drivers, routes: routes, audit: audit,
		bus: bus, zones: zones, offers: offers, decider: decider,
		distance: distance, clock: clock, cfg: cfg,
		log: obs.Component("dispatch"),
	}
}

// Tick runs one pass of the Dispatch Engine over every eligible order
// (§4.2 "Inputs: an order-pending event or a periodic tick").
func (e *Dispatcher) Tick(ctx context.Context) {
	for _, o := range e.orders.All() {
		if ctx.Err() != nil {
			return
		}
		if o.Status != fleet.OrderPending && o.Status != fleet.OrderPendingDriver {
			continue
		}
		if o.BatchID != "" {
			// Batched orders are dispatched as a unit by the batching
			// engine's anchor-order path (batch.go), not individually.
			continue
		}
		e.dispatchOne(ctx, o.ID, []string{o.ID}, o.ServiceType, o.Pickup, o.LoadKg, o.SLADeadline, "")
	}
}

// ForceDispatch immediately re-runs the assign sequence for a single
// order, outside the normal Tick cadence — the escalation engine's
// SLA_RISK_CRITICAL action (§4.5: "Force-assign (§4.2)"). The order's own
// remaining SLA time decides whether dispatchOne actually bypasses
// min_score; this just requests an out-of-cycle attempt now rather than
// waiting for the next tick.
func (e *Dispatcher) ForceDispatch(ctx context.Context, orderID string) error {
	var o, err = e.orders.Get(orderID)
	if err != nil {
		return fmt.Errorf("force dispatch: %w", err)
	}
	if o.Status != fleet.OrderPending && o.Status != fleet.OrderPendingDriver {
		return fmt.Errorf("force dispatch: order %s is not pending (status=%s)", orderID, o.Status)
	}
	e.dispatchOne(ctx, o.ID, []string{o.ID}, o.ServiceType, o.Pickup, o.LoadKg, o.SLADeadline, o.BatchID)
	return nil
}

// dispatchOne runs the candidate search, scoring, offer, and commit
// sequence for one unit of work — a single order or a pre-batched group
// sharing one anchor pickup location. anchorOrderID is used for lease
// bookkeeping and logging when batchID is non-empty.
func (e *Dispatcher) dispatchOne(ctx context.Context, anchorOrderID string, orderIDs []string, tier fleet.ServiceType, anchor fleet.GeoPoint, loadKg float64, slaDeadline time.Time, batchID string) {
	var now = e.clock.Now()
	var forceAssign = slaDeadline.Sub(now) < e.cfg.ForceThreshold

	var radius = e.cfg.RadiusKm
	var attempts = 0

	for attempts < e.cfg.MaxOffersPerOrder {
		if ctx.Err() != nil {
			return
		}

		var candidates = e.buildCandidates(ctx, anchorOrderID, tier, anchor, radius, loadKg)
		RankCandidates(candidates)

		var chosen *Candidate
		var assignmentType = "NORMAL"

		for i := range candidates {
			if candidates[i].Score >= e.cfg.MinScore {
				chosen = &candidates[i]
				break
			}
		}

		if chosen == nil && len(candidates) > 0 && radius >= e.cfg.RadiusKm*e.cfg.MaxRadiusMultiple {
			if forceAssign {
				chosen = &candidates[0]
				assignmentType = "FORCE_ASSIGNED"
			}
		}

		if chosen == nil {
			if radius < e.cfg.RadiusKm*e.cfg.MaxRadiusMultiple {
				radius *= e.cfg.RadiusGrowthFactor
				if radius > e.cfg.RadiusKm*e.cfg.MaxRadiusMultiple {
					radius = e.cfg.RadiusKm * e.cfg.MaxRadiusMultiple
				}
				continue
			}
			e.noDriversFound(anchorOrderID, tier, now)
			return
		}

		var leased, err = e.offerAndDecide(ctx, anchorOrderID, chosen.DriverID)
		if err != nil {
			e.log.Log(log.WarnLevel, log.Fields{"order_id": anchorOrderID, "driver_id": chosen.DriverID, "error": err.Error()}, "offer evaluation failed")
			attempts++
			continue
		}
		if !leased {
			attempts++
			var count = e.offers.Reject(anchorOrderID, chosen.DriverID, now, e.cfg.CooldownAfterReject)
			if count >= e.cfg.MaxOffersPerOrder {
				e.allBusy(anchorOrderID, tier, now)
				return
			}
			continue
		}

		e.commit(ctx, anchorOrderID, orderIDs, chosen, batchID, assignmentType, radius, tier, now)
		return
	}

	e.allBusy(anchorOrderID, tier, now)
}

// buildCandidates returns every driver qualifying for the candidate set
// of §4.2: can_accept, serves the tier, enough remaining capacity, within
// radius, and not on cooldown for this order.
func (e *Dispatcher) buildCandidates(ctx context.Context, orderID string, tier fleet.ServiceType, anchor fleet.GeoPoint, radiusKm, loadKg float64) []Candidate {
	var now = e.clock.Now()
	var out []Candidate

	for _, d := range e.drivers.All() {
		if !d.CanAccept() || !d.ServesType(tier) {
			continue
		}
		if e.offers.OnCooldown(orderID, d.ID, now) {
			continue
		}

		var distanceKm, _, err = e.distance.DistanceDuration(ctx, d.CurrentLocation, anchor, tier)
		if err != nil || distanceKm > radiusKm {
			continue
		}

		var currentLoad = d.CurrentLoadKg(e.orderLoadKg)
		if d.CapacityKg-currentLoad < loadKg {
			continue
		}

		var overlap = e.zones.Overlaps(d.ID, anchor)
		var candidate = ScoreCandidate(d, anchor, distanceKm, radiusKm, currentLoad, overlap, e.cfg.Weights)
		obs.DispatchScoreHistogram.WithLabelValues(string(tier)).Observe(candidate.Score)
		out = append(out, candidate)
	}

	return out
}

// offerAndDecide issues a lease to driverID and consults the decider
// (§4.2 step 2: "The offer has a timeout during which no other order may
// be offered to that driver and no other driver may be offered this
// order"). Returns leased=true only on acceptance within the timeout.
func (e *Dispatcher) offerAndDecide(ctx context.Context, orderID, driverID string) (bool, error) {
	var now = e.clock.Now()
	if _, err := e.offers.Offer(orderID, driverID, now, e.cfg.OfferTimeout); err != nil {
		return false, err
	}

	var offerCtx, cancel = context.WithTimeout(ctx, e.cfg.OfferTimeout)
	defer cancel()

	var decision, err = e.decider.Decide(offerCtx, orderID, driverID)
	if err != nil {
		e.offers.Resolve(orderID)
		return false, err
	}

	switch decision {
	case OfferAccepted:
		e.offers.Resolve(orderID)
		return true, nil
	case OfferRejected, OfferTimedOut:
		return false, nil
	default:
		return false, fmt.Errorf("dispatch: unknown offer decision %v", decision)
	}
}

// commit implements §4.2 step 3 and the §7/§4.2 all-or-nothing commit
// semantics: the state transition, order update, and assignment_log write
// happen together or not at all, retried with exponential backoff before
// surfacing a fatal condition on this order.
func (e *Dispatcher) commit(ctx context.Context, anchorOrderID string, orderIDs []string, chosen *Candidate, batchID, assignmentType string, radiusUsed float64, tier fleet.ServiceType, now time.Time) {
	var err = withCommitRetry(ctx, func() error {
		return e.commitOnce(anchorOrderID, orderIDs, chosen, batchID, assignmentType, radiusUsed, tier, now)
	})
	if err != nil {
		e.log.Log(log.ErrorLevel, log.Fields{"order_id": anchorOrderID, "driver_id": chosen.DriverID, "error": err.Error()}, "assignment commit exhausted retries")
		e.bus.DispatchAlert.Publish(events.DispatchAlert{
			Severity: "CRITICAL",
			Type:     "ASSIGNMENT_COMMIT_FAILED",
			OrderID:  anchorOrderID,
			Message:  err.Error(),
			At:       now,
		})
	}
}

func (e *Dispatcher) commitOnce(anchorOrderID string, orderIDs []string, chosen *Candidate, batchID, assignmentType string, radiusUsed float64, tier fleet.ServiceType, now time.Time) error {
	if _, err := e.drivers.TryTransition(chosen.DriverID, fleet.DriverBusy, "order_assigned", "dispatch"); err != nil {
		return fmt.Errorf("transitioning driver busy: %w", err)
	}

	for _, id := range orderIDs {
		var _, err = e.orders.CompareAndUpdate(id, []fleet.OrderStatus{fleet.OrderPending, fleet.OrderPendingDriver}, func(o *fleet.Order) error {
			o.Status = fleet.OrderAssigned
			o.DriverID = chosen.DriverID
			o.BatchID = batchID
			return nil
		})
		if err != nil {
			return fmt.Errorf("updating order %s: %w", id, err)
		}
	}

	if err := e.drivers.WithDriver(chosen.DriverID, func(d *fleet.Driver) error {
		d.ActiveOrderIDs = append(d.ActiveOrderIDs, orderIDs...)
		return nil
	}); err != nil {
		return fmt.Errorf("appending active orders: %w", err)
	}

	e.zones.Record(chosen.DriverID, chosen.Anchor)

	var entry = AssignmentLog{
		OrderID:        anchorOrderID,
		DriverID:       chosen.DriverID,
		BatchID:        batchID,
		Proximity:      chosen.Proximity,
		Performance:    chosen.Performance,
		Capacity:       chosen.Capacity,
		Zone:           chosen.Zone,
		Score:          chosen.Score,
		AssignmentType: assignmentType,
		RadiusKmUsed:   radiusUsed,
		At:             now,
	}
	if err := e.audit.Append("assignment_logs", anchorOrderID, now, entry); err != nil {
		return fmt.Errorf("writing assignment_log: %w", err)
	}

	e.routes.TriggerOptimization(chosen.DriverID, "order_assigned")

	obs.DispatchAssignedTotal.WithLabelValues(string(tier), assignmentType).Inc()

	e.bus.OrderAssigned.Publish(events.OrderAssigned{
		OrderID:        anchorOrderID,
		DriverID:       chosen.DriverID,
		Score:          chosen.Score,
		AssignmentType: assignmentType,
		At:             now,
	})

	return nil
}

func (e *Dispatcher) noDriversFound(orderID string, tier fleet.ServiceType, now time.Time) {
	var _, err = e.orders.CompareAndUpdate(orderID, []fleet.OrderStatus{fleet.OrderPending, fleet.OrderPendingDriver}, func(o *fleet.Order) error {
		o.Status = fleet.OrderPendingDriver
		return nil
	})
	if err != nil {
		e.log.Log(log.WarnLevel, log.Fields{"order_id": orderID, "error": err.Error()}, "marking order pending_driver failed")
	}

	obs.DispatchNoDriversTotal.WithLabelValues(string(tier)).Inc()
	e.bus.OrderPendingDriver.Publish(events.OrderPendingDriver{OrderID: orderID, At: now})
	e.bus.DispatchAlert.Publish(events.DispatchAlert{
		Severity: "HIGH",
		Type:     string(fleet.AlertNoDrivers),
		OrderID:  orderID,
		Message:  "no qualifying driver found within max radius",
		At:       now,
	})
}

// orderLoadKg looks up an order's load by id for fleet.Driver.CurrentLoadKg's
// accumulation over a driver's ActiveOrderIDs; a lookup failure (order
// already terminal and evicted, or a bad id) contributes no load rather
// than aborting the candidate scan.
func (e *Dispatcher) orderLoadKg(orderID string) float64 {
	var o, err = e.orders.Get(orderID)
	if err != nil {
		return 0
	}
	return o.LoadKg
}

func (e *Dispatcher) allBusy(orderID string, tier fleet.ServiceType, now time.Time) {
	obs.DispatchRejectedTotal.WithLabelValues(string(tier)).Inc()
	e.bus.DispatchAlert.Publish(events.DispatchAlert{
		Severity: "MEDIUM",
		Type:     string(fleet.AlertAllBusy),
		OrderID:  orderID,
		Message:  "exhausted max offers per order, every qualifying driver rejected or timed out",
		At:       now,
	})
}
