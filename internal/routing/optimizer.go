package routing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/events"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/obs"
)

// Optimizer is the §4.4 Route Optimizer.
type Optimizer struct {
	routes RouteStore
	audit  AuditSink
	bus    *events.Bus
	clock  fleet.Clock
	cfg    Config
	log    obs.Logger
	dist   *distanceCache
}

func New(routes RouteStore, audit AuditSink, bus *events.Bus, clock fleet.Clock, cfg Config) *Optimizer {
	return &Optimizer{routes: routes, audit: audit, bus: bus, clock: clock, cfg: cfg, log: obs.Component("routing"), dist: newDistanceCache()}
}

// Optimize recomputes a driver's route from its current unvisited stops
// and activates it if the improvement over the currently active route
// clears min_improvement (§4.4 Output).
func (o *Optimizer) Optimize(driverID string, origin fleet.GeoPoint, stops []fleet.Stop, tier fleet.ServiceType, incidents []fleet.TrafficIncident, reason string) error {
	if len(stops) == 0 {
		return nil
	}

	var now = o.clock.Now()
	var roadFactor = o.cfg.RoadFactor
	if roadFactor <= 0 {
		roadFactor = fleet.DefaultRoadFactor
	}

	var tour []fleet.Stop
	if len(stops) <= o.cfg.NNCap {
		tour = nearestNeighborTour(origin, stops, o.dist)
	} else {
		tour = cheapestInsertionTour(origin, stops, roadFactor, o.dist)
	}
	if tour == nil {
		return o.fail(driverID, "precedence violation: no legal tour exists for the current stop set", now)
	}

	tour = twoOpt(origin, tour, incidents, roadFactor, o.cfg.Max2OptPasses, o.dist)
	if !validPrecedence(tour) || crossesBlockingIncident(origin, tour, incidents) {
		return o.fail(driverID, "2-opt refinement could not produce a legal tour", now)
	}

	var newDistance = tourDistanceKm(origin, tour, roadFactor, o.dist)
	var newDuration = tourDurationMin(tour, tier, roadFactor, o.dist)
	var withETAs = stampETAs(tour, now, tier, roadFactor, o.dist)

	var newRoute = &fleet.Route{
		ID:               uuid.NewString(),
		DriverID:         driverID,
		Stops:            withETAs,
		TotalDistanceKm:  newDistance,
		TotalDurationMin: newDuration,
		OptimizedAt:      now,
	}

	var oldDistance, oldDuration float64
	var oldStops []fleet.Stop
	var improvement float64
	if active, ok := o.routes.ActiveFor(driverID); ok {
		oldDistance = active.TotalDistanceKm
		oldDuration = active.TotalDurationMin
		oldStops = active.Stops
		if oldDistance > 0 {
			improvement = (oldDistance - newDistance) / oldDistance
		}
	} else {
		improvement = 1 // no prior route: always accept
	}

	var accepted = improvement >= o.cfg.MinImprovement

	var rec = optimizationRecord{
		DriverID:      driverID,
		Accepted:      accepted,
		Reason:        reason,
		OldDistance:   oldDistance,
		NewDistance:   newDistance,
		OldDuration:   oldDuration,
		NewDuration:   newDuration,
		Improvement:   improvement,
		StopOrderDiff: stopOrderPatch(oldStops, withETAs),
	}
	if err := o.audit.Append("route_optimizations", driverID, now, rec); err != nil {
		o.log.Log(log.WarnLevel, log.Fields{"driver_id": driverID, "error": err.Error()}, "failed appending route_optimization audit row")
	}

	if !accepted {
		return nil
	}

	o.routes.Activate(newRoute)
	obs.RouteOptimizedTotal.WithLabelValues(reason).Inc()
	obs.RouteImprovementHistogram.WithLabelValues().Observe(improvement)
	o.bus.RouteOptimized.Publish(events.RouteOptimized{
		DriverID: driverID,
		SavedKm:  oldDistance - newDistance,
		SavedMin: oldDuration - newDuration,
		Reason:   reason,
		At:       now,
	})
	return nil
}

// fail implements §4.4's Failure semantics: leave the route unchanged and
// raise a HIGH-severity operational alert on the DispatchAlert topic.
func (o *Optimizer) fail(driverID, message string, now time.Time) error {
	o.log.Log(log.ErrorLevel, log.Fields{"driver_id": driverID, "reason": message}, "route optimization failed, keeping existing route")
	o.bus.DispatchAlert.Publish(events.DispatchAlert{
		Severity: "HIGH",
		Type:     "ROUTE_OPTIMIZATION_FAILED",
		OrderID:  driverID,
		Message:  message,
		At:       now,
	})
	return fmt.Errorf("route optimization for driver %s: %s", driverID, message)
}

// tourDurationMin sums per-leg travel durations using the tier's average
// speed (§4.4 step 3's "tier-specific average speed for duration").
func tourDurationMin(tour []fleet.Stop, tier fleet.ServiceType, roadFactor float64, cache *distanceCache) float64 {
	var speed = fleet.TierSpeedKmh[tier]
	if speed <= 0 {
		speed = fleet.TierSpeedKmh[fleet.ServiceTypeBarq]
	}
	var totalKm float64
	var prev fleet.GeoPoint
	var has bool
	for _, s := range tour {
		if has {
			totalKm += cache.distance(prev, s.Coord) * roadFactor
		}
		prev = s.Coord
		has = true
	}
	return totalKm / speed * 60.0
}

// stampETAs assigns a cumulative ETA to each stop given tour start time
// now. The first stop is stamped at now: travel from the driver's current
// location to it is not counted. Duration is recomputed per-leg so ETAs
// line up with tourDurationMin's total, which also starts at the first
// stop.
func stampETAs(tour []fleet.Stop, now time.Time, tier fleet.ServiceType, roadFactor float64, cache *distanceCache) []fleet.Stop {
	var speed = fleet.TierSpeedKmh[tier]
	if speed <= 0 {
		speed = fleet.TierSpeedKmh[fleet.ServiceTypeBarq]
	}

	var out = append([]fleet.Stop(nil), tour...)
	var cursor = now
	var prev fleet.GeoPoint
	var has bool
	for i := range out {
		if has {
			var legKm = cache.distance(prev, out[i].Coord) * roadFactor
			var legMin = legKm / speed * 60.0
			cursor = cursor.Add(time.Duration(legMin * float64(time.Minute)))
		}
		out[i].ETA = cursor
		prev = out[i].Coord
		has = true
	}
	return out
}
