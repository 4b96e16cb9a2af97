package routing

import (
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// nearestNeighborTour builds an initial precedence-aware tour: repeatedly
// append the closest stop that is legal next — a PICKUP is always legal;
// a DELIVERY is legal only once its PICKUP is already in the tour (§4.4
// step 1).
func nearestNeighborTour(origin fleet.GeoPoint, stops []fleet.Stop, cache *distanceCache) []fleet.Stop {
	var remaining = append([]fleet.Stop(nil), stops...)
	var placed = make(map[string]bool, len(stops))
	var cur = origin
	var tour = make([]fleet.Stop, 0, len(stops))

	for len(remaining) > 0 {
		var bestIdx = -1
		var bestDist = -1.0
		for i, s := range remaining {
			if s.Kind == fleet.StopDelivery && !placed[s.OrderID] {
				continue
			}
			var d = cache.distance(cur, s.Coord)
			if bestIdx == -1 || d < bestDist {
				bestIdx = i
				bestDist = d
			}
		}
		if bestIdx == -1 {
			// Every remaining stop is a delivery whose pickup has not been
			// placed — a corrupt input (§4.4 Failure semantics). Bail out
			// and let the caller surface the alert.
			return nil
		}

		var chosen = remaining[bestIdx]
		tour = append(tour, chosen)
		if chosen.Kind == fleet.StopPickup {
			placed[chosen.OrderID] = true
		}
		cur = chosen.Coord
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return tour
}

// validPrecedence reports whether every DELIVERY in tour is preceded by
// its own PICKUP.
func validPrecedence(tour []fleet.Stop) bool {
	var seen = make(map[string]bool, len(tour))
	for _, s := range tour {
		switch s.Kind {
		case fleet.StopPickup:
			seen[s.OrderID] = true
		case fleet.StopDelivery:
			if !seen[s.OrderID] {
				return false
			}
		}
	}
	return true
}

// tourDistanceKm sums the haversine leg distances of a tour starting from
// origin, scaled by roadFactor.
func tourDistanceKm(origin fleet.GeoPoint, tour []fleet.Stop, roadFactor float64, cache *distanceCache) float64 {
	var total float64
	var cur = origin
	for _, s := range tour {
		total += cache.distance(cur, s.Coord) * roadFactor
		cur = s.Coord
	}
	return total
}

// crossesBlockingIncident reports whether any leg of tour (starting from
// origin) crosses an active HIGH/SEVERE traffic incident's radius (§4.4
// step 2's swap-rejection rule).
func crossesBlockingIncident(origin fleet.GeoPoint, tour []fleet.Stop, incidents []fleet.TrafficIncident) bool {
	var cur = origin
	for _, s := range tour {
		for _, inc := range incidents {
			if inc.BlocksRouting() && inc.CrossesIncident(cur, s.Coord) {
				return true
			}
		}
		cur = s.Coord
	}
	return false
}

// twoOpt refines tour with up to maxPasses passes of 2-opt swaps, each
// reversing a segment and keeping the reversal only if it shortens the
// tour, preserves precedence, and does not introduce a leg crossing a
// blocking incident (§4.4 step 2).
func twoOpt(origin fleet.GeoPoint, tour []fleet.Stop, incidents []fleet.TrafficIncident, roadFactor float64, maxPasses int, cache *distanceCache) []fleet.Stop {
	var best = append([]fleet.Stop(nil), tour...)
	var bestDist = tourDistanceKm(origin, best, roadFactor, cache)

	for pass := 0; pass < maxPasses; pass++ {
		var improved = false

		for i := 0; i < len(best)-1; i++ {
			for j := i + 1; j < len(best); j++ {
				var candidate = reversedSegment(best, i, j)
				if !validPrecedence(candidate) {
					continue
				}
				if crossesBlockingIncident(origin, candidate, incidents) {
					continue
				}
				var d = tourDistanceKm(origin, candidate, roadFactor, cache)
				if d < bestDist {
					best = candidate
					bestDist = d
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}

	return best
}

func reversedSegment(tour []fleet.Stop, i, j int) []fleet.Stop {
	var out = append([]fleet.Stop(nil), tour...)
	for l, r := i, j; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}
