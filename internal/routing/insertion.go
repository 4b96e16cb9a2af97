package routing

import (
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// cheapestInsertionTour builds an initial tour for stop sets above nn_cap
// (§4.4 "For larger stop sets use cheapest-insertion for the initial
// tour"): repeatedly insert the remaining stop/position pair with the
// lowest added distance, respecting that a DELIVERY may only be inserted
// at a position after its own PICKUP.
func cheapestInsertionTour(origin fleet.GeoPoint, stops []fleet.Stop, roadFactor float64, cache *distanceCache) []fleet.Stop {
	var remaining = append([]fleet.Stop(nil), stops...)
	var tour []fleet.Stop

	for len(remaining) > 0 {
		var bestStopIdx, bestPos = -1, -1
		var bestCost = -1.0

		for si, s := range remaining {
			var minPos = 0
			if s.Kind == fleet.StopDelivery {
				var pickupPos = indexOfPickup(tour, s.OrderID)
				if pickupPos == -1 {
					continue // pickup not yet placed, cannot insert this delivery yet
				}
				minPos = pickupPos + 1
			}

			for pos := minPos; pos <= len(tour); pos++ {
				var cost = insertionCost(origin, tour, pos, s, roadFactor, cache)
				if bestStopIdx == -1 || cost < bestCost {
					bestStopIdx, bestPos, bestCost = si, pos, cost
				}
			}
		}

		if bestStopIdx == -1 {
			// Nothing insertable means every remaining stop is a delivery
			// awaiting a pickup that will never come (§4.4 Failure
			// semantics) — a corrupt input.
			return nil
		}

		var chosen = remaining[bestStopIdx]
		tour = insertAt(tour, bestPos, chosen)
		remaining = append(remaining[:bestStopIdx], remaining[bestStopIdx+1:]...)
	}

	return tour
}

func indexOfPickup(tour []fleet.Stop, orderID string) int {
	for i, s := range tour {
		if s.Kind == fleet.StopPickup && s.OrderID == orderID {
			return i
		}
	}
	return -1
}

// insertionCost is the added distance from inserting s at position pos in
// tour, relative to origin as the implicit stop before index 0.
func insertionCost(origin fleet.GeoPoint, tour []fleet.Stop, pos int, s fleet.Stop, roadFactor float64, cache *distanceCache) float64 {
	var prev = origin
	if pos > 0 {
		prev = tour[pos-1].Coord
	}
	var next, hasNext = fleet.GeoPoint{}, false
	if pos < len(tour) {
		next = tour[pos].Coord
		hasNext = true
	}

	var added = cache.distance(prev, s.Coord) * roadFactor
	if hasNext {
		added += cache.distance(s.Coord, next)*roadFactor - cache.distance(prev, next)*roadFactor
	}
	return added
}

func insertAt(tour []fleet.Stop, pos int, s fleet.Stop) []fleet.Stop {
	var out = make([]fleet.Stop, 0, len(tour)+1)
	out = append(out, tour[:pos]...)
	out = append(out, s)
	out = append(out, tour[pos:]...)
	return out
}
