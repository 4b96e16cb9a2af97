package batching

import (
	"sort"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// cluster is a working group of orders being assembled; it tracks its
// centroid pickup so new candidates can be compared against the group as
// a whole rather than against every existing member pairwise.
type cluster struct {
	orders   []*fleet.Order
	centroid fleet.GeoPoint
}

func (c *cluster) add(o *fleet.Order) {
	c.orders = append(c.orders, o)
	var sumLat, sumLng float64
	for _, m := range c.orders {
		sumLat += m.Pickup.Lat
		sumLng += m.Pickup.Lng
	}
	var n = float64(len(c.orders))
	c.centroid = fleet.GeoPoint{Lat: sumLat / n, Lng: sumLng / n}
}

// compatibleWithAll reports whether candidate is compatible with every
// existing member of the cluster, per §4.3's "still compatible with every
// member" clustering rule.
func (c *cluster) compatibleWithAll(candidate *fleet.Order, cfg Config, clock fleet.Clock) bool {
	for _, m := range c.orders {
		if !Compatible(m, candidate, cfg, clock) {
			return false
		}
	}
	return true
}

// Cluster runs the greedy single-link clustering of §4.3 over a set of
// pending/pending_driver orders: sort by sla_deadline ascending, attach
// each order to the existing cluster whose centroid pickup is closest
// and still compatible with every member, else start a new cluster.
// Clusters of size 1 are discarded; clusters are capped at
// cfg.MaxBatchSize.
func Cluster(orders []*fleet.Order, cfg Config, clock fleet.Clock) [][]*fleet.Order {
	var sorted = append([]*fleet.Order(nil), orders...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SLADeadline.Before(sorted[j].SLADeadline)
	})

	var clusters []*cluster

	for _, o := range sorted {
		var best *cluster
		var bestDist = -1.0

		for _, c := range clusters {
			if len(c.orders) >= cfg.MaxBatchSize {
				continue
			}
			if !c.compatibleWithAll(o, cfg, clock) {
				continue
			}
			var d = fleet.Haversine(c.centroid, o.Pickup)
			if best == nil || d < bestDist {
				best = c
				bestDist = d
			}
		}

		if best != nil {
			best.add(o)
			continue
		}

		var fresh = &cluster{}
		fresh.add(o)
		clusters = append(clusters, fresh)
	}

	var out [][]*fleet.Order
	for _, c := range clusters {
		if len(c.orders) < 2 {
			continue
		}
		out = append(out, c.orders)
	}
	return out
}
