package dispatch

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// zoneCellDegrees buckets a GeoPoint into a coarse zone cell for the Zone
// score Z of §4.2 ("1 if driver's recent deliveries overlap the order's
// zone, else 0"). ~0.01 degrees is roughly 1km at the equator — fine
// enough to distinguish neighborhoods, coarse enough that a driver's
// recent drop-offs cluster into a handful of zones rather than one per
// delivery.
const zoneCellDegrees = 0.01

// Zone is a coarse grid cell identifying a neighborhood-scale area.
type Zone struct {
	LatCell int
	LngCell int
}

// ZoneOf buckets a point into its zone cell.
func ZoneOf(p fleet.GeoPoint) Zone {
	return Zone{
		LatCell: int(p.Lat / zoneCellDegrees),
		LngCell: int(p.Lng / zoneCellDegrees),
	}
}

// ZoneCache tracks, per driver, the bounded set of zones they have
// recently delivered into, so the Zone score can be looked up without
// rescanning delivery history. Grounded on the teacher's use of
// hashicorp/golang-lru for catalog build caching — repurposed here from
// caching derived build artifacts to caching a bounded recency window of
// per-driver zones.
type ZoneCache struct {
	recent *lru.Cache[string, map[Zone]struct{}]
	cap    int
}

// NewZoneCache returns a cache holding up to maxDrivers drivers' zone
// sets, each capped at recentZonesPerDriver entries. When a driver's set
// is full, Record drops one existing zone to make room; which one follows
// Go map iteration order, so it is not necessarily the oldest.
func NewZoneCache(maxDrivers, recentZonesPerDriver int) *ZoneCache {
	var c, _ = lru.New[string, map[Zone]struct{}](maxDrivers)
	return &ZoneCache{recent: c, cap: recentZonesPerDriver}
}

// Record notes that driverID recently delivered into the zone containing p.
func (c *ZoneCache) Record(driverID string, p fleet.GeoPoint) {
	var z = ZoneOf(p)
	zones, ok := c.recent.Get(driverID)
	if !ok {
		zones = make(map[Zone]struct{}, c.cap)
	}
	if len(zones) >= c.cap {
		for k := range zones {
			delete(zones, k)
			break
		}
	}
	zones[z] = struct{}{}
	c.recent.Add(driverID, zones)
}

// Overlaps reports whether driverID has recently delivered into the zone
// containing p.
func (c *ZoneCache) Overlaps(driverID string, p fleet.GeoPoint) bool {
	zones, ok := c.recent.Get(driverID)
	if !ok {
		return false
	}
	_, found := zones[ZoneOf(p)]
	return found
}
