// Package batching implements the Smart Batching Engine of spec §4.3:
// proximity/temporal clustering of unassigned orders into multi-stop
// batches dispatched as one work item.
package batching

import (
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// Config is the subset of §6 this package reads; internal/engine maps
// internal/config.Config.Batching onto this.
type Config struct {
	PickupClusterKm float64
	DropSpanKm      float64
	MaxBatchSize    int
}

// capacityForTier is the smallest viable vehicle capacity for a service
// tier's batched orders, used by the compatibility predicate's combined-
// load check. Grounded on spec §4.3's "combined load ≤ the smallest
// viable vehicle's capacity for the service tier" — the core does not
// own a vehicle catalog, so this is the conservative per-tier floor a
// batch must fit under regardless of which specific driver eventually
// takes it.
var capacityForTier = map[fleet.ServiceType]float64{
	fleet.ServiceTypeBarq:   15.0,  // smallest vehicle serving BARQ: a bike
	fleet.ServiceTypeBullet: 300.0, // smallest vehicle serving BULLET: a van
}

// Compatible reports whether orders a and b may share a batch, per the
// five-part predicate of §4.3. now is used to conservatively estimate
// whether both orders' SLA windows can still be met once combined.
func Compatible(a, b *fleet.Order, cfg Config, clock fleet.Clock) bool {
	if a.ServiceType != b.ServiceType {
		return false
	}
	if fleet.Haversine(a.Pickup, b.Pickup) > cfg.PickupClusterKm {
		return false
	}

	var span = fleet.BoundingBoxDiagonalKm([]fleet.GeoPoint{a.Pickup, a.Dropoff, b.Pickup, b.Dropoff})
	if span > cfg.DropSpanKm {
		return false
	}

	if a.LoadKg+b.LoadKg > capacityForTier[a.ServiceType] {
		return false
	}

	return slaWindowAllowsBoth(a, b, clock.Now())
}

// slaWindowAllowsBoth conservatively estimates whether the earlier of the
// two SLA deadlines still leaves enough time to serve both pickups and
// both drop-offs in sequence, using the tier's estimated travel time as a
// stand-in for "conservative travel estimates" (§4.3) since the real
// route optimizer has not yet run for a not-yet-assigned batch.
func slaWindowAllowsBoth(a, b *fleet.Order, now time.Time) bool {
	var earliest = a.SLADeadline
	if b.SLADeadline.Before(earliest) {
		earliest = b.SLADeadline
	}

	var _, d1 = fleet.EstimateDistanceDuration(a.Pickup, a.Dropoff, a.ServiceType)
	var _, d2 = fleet.EstimateDistanceDuration(b.Pickup, b.Dropoff, b.ServiceType)
	var _, legLink = fleet.EstimateDistanceDuration(a.Dropoff, b.Pickup, a.ServiceType)

	var estimatedMinutes = d1 + d2 + legLink
	var deadline = now.Add(time.Duration(estimatedMinutes * float64(time.Minute)))

	return !deadline.After(earliest)
}
