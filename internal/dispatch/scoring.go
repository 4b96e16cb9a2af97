package dispatch

import (
	"sort"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// Weights are the four scoring dimensions of spec §4.2, required to sum
// to 1 ± 1e-6 (enforced by internal/config.Config.Validate).
type Weights struct {
	Proximity   float64
	Performance float64
	Capacity    float64
	Zone        float64
}

// Candidate is one scored driver for a pending order.
type Candidate struct {
	DriverID       string
	Anchor         fleet.GeoPoint
	DistanceKm     float64
	Proximity      float64
	Performance    float64
	Capacity       float64
	Zone           float64
	Score          float64
	CompletedToday int
}

// ScoreCandidate computes S = w_p·P + w_f·F + w_c·C + w_z·Z for one driver
// against one order, given the radius in effect (proximity is relative to
// the current search radius, which grows across widening rounds) and
// whether the driver's recent delivery zones overlap the order's zone.
func ScoreCandidate(d *fleet.Driver, anchor fleet.GeoPoint, distanceKm, radiusKm float64, currentLoadKg float64, zoneOverlap bool, w Weights) Candidate {
	var proximity = 1.0 - clamp01(distanceKm/radiusKm)
	var performance = clamp01(d.OnTimeRate)
	var capacity = 1.0
	if d.CapacityKg > 0 {
		capacity = clamp01(1.0 - currentLoadKg/d.CapacityKg)
	}
	var zone = 0.0
	if zoneOverlap {
		zone = 1.0
	}

	var score = w.Proximity*proximity + w.Performance*performance + w.Capacity*capacity + w.Zone*zone

	return Candidate{
		DriverID:       d.ID,
		Anchor:         anchor,
		DistanceKm:     distanceKm,
		Proximity:      proximity,
		Performance:    performance,
		Capacity:       capacity,
		Zone:           zone,
		Score:          score,
		CompletedToday: d.CompletedToday,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RankCandidates sorts candidates highest-score first, breaking ties by
// lower completed_today (workload smoothing) then lower driver_id
// (deterministic), per spec §4.2.
func RankCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		var a, b = candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CompletedToday != b.CompletedToday {
			return a.CompletedToday < b.CompletedToday
		}
		return a.DriverID < b.DriverID
	})
}
