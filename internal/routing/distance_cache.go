package routing

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// distanceCacheSize bounds the pairwise-distance memo. A single Optimize
// call re-evaluates the same leg many times over — cheapest-insertion
// tries every remaining stop against every tour position, and 2-opt
// re-scores the whole tour on every candidate swap — and the periodic
// re-optimization loop resubmits the same driver's largely-unchanged stop
// set tick after tick, so the memo keeps paying off across calls too.
const distanceCacheSize = 8192

// coordPrecision rounds a coordinate to roughly 0.11m at the equator, fine
// enough that floating-point jitter never causes a cache miss on what is
// logically the same point.
const coordPrecision = 1e6

type coordKey struct {
	lat, lng int64
}

func keyOf(p fleet.GeoPoint) coordKey {
	return coordKey{lat: int64(p.Lat * coordPrecision), lng: int64(p.Lng * coordPrecision)}
}

type legKey struct {
	a, b coordKey
}

// distanceCache memoizes fleet.Haversine results. Grounded on the same
// hashicorp/golang-lru use as dispatch.ZoneCache — here bounding a pure
// computation memo rather than a recency window.
type distanceCache struct {
	hits *lru.Cache[legKey, float64]
}

func newDistanceCache() *distanceCache {
	var c, _ = lru.New[legKey, float64](distanceCacheSize)
	return &distanceCache{hits: c}
}

// distance returns the haversine distance between a and b, memoized. A nil
// receiver falls back to an uncached lookup so package-level helpers stay
// callable without a cache in tests.
func (c *distanceCache) distance(a, b fleet.GeoPoint) float64 {
	if c == nil {
		return fleet.Haversine(a, b)
	}
	var k = legKey{a: keyOf(a), b: keyOf(b)}
	if d, ok := c.hits.Get(k); ok {
		return d
	}
	var d = fleet.Haversine(a, b)
	c.hits.Add(k, d)
	return d
}
