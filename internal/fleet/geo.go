package fleet

import (
	"context"
	"math"
)

const earthRadiusKm = 6371.0

// GeoPoint is a WGS-84 coordinate.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// Haversine returns the great-circle distance between two points in
// kilometers.
func Haversine(a, b GeoPoint) float64 {
	var (
		lat1 = a.Lat * math.Pi / 180
		lat2 = b.Lat * math.Pi / 180
		dLat = (b.Lat - a.Lat) * math.Pi / 180
		dLng = (b.Lng - a.Lng) * math.Pi / 180
	)

	var h = math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	var c = 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// DefaultRoadFactor scales straight-line distance to an approximate road
// distance when no provider-supplied distance is available.
const DefaultRoadFactor = 1.3

// TierSpeedKmh is the average travel speed used for duration estimates
// when no provider-supplied duration is available.
var TierSpeedKmh = map[ServiceType]float64{
	ServiceTypeBarq:   28.0,
	ServiceTypeBullet: 35.0,
}

// EstimateDistanceDuration returns an estimated road distance (km) and
// travel duration (minutes) between two points for a given service tier,
// using a fixed road factor over the haversine distance.
// HaversineDistanceProvider wraps it as the DistanceProvider fallback, and
// the batching engine's compatibility check calls it directly.
func EstimateDistanceDuration(a, b GeoPoint, tier ServiceType) (distanceKm, durationMin float64) {
	var straight = Haversine(a, b)
	distanceKm = straight * DefaultRoadFactor

	var speed = TierSpeedKmh[tier]
	if speed <= 0 {
		speed = TierSpeedKmh[ServiceTypeBarq]
	}
	durationMin = distanceKm / speed * 60.0
	return
}

// BoundingBoxDiagonalKm returns the diagonal (km) of the bounding box that
// contains all given points, used by the batching engine's drop-span check.
func BoundingBoxDiagonalKm(points []GeoPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var minLat, maxLat = points[0].Lat, points[0].Lat
	var minLng, maxLng = points[0].Lng, points[0].Lng
	for _, p := range points[1:] {
		if p.Lat < minLat {
			minLat = p.Lat
		}
		if p.Lat > maxLat {
			maxLat = p.Lat
		}
		if p.Lng < minLng {
			minLng = p.Lng
		}
		if p.Lng > maxLng {
			maxLng = p.Lng
		}
	}
	return Haversine(GeoPoint{Lat: minLat, Lng: minLng}, GeoPoint{Lat: maxLat, Lng: maxLng})
}

// DistanceProvider is the narrow contract the core depends on for
// map/road-network queries (§1: out of scope beyond this contract).
// HaversineDistanceProvider is the implementation this module ships; no
// implementation backed by a real routing provider is included.
type DistanceProvider interface {
	DistanceDuration(ctx context.Context, a, b GeoPoint, tier ServiceType) (distanceKm, durationMin float64, err error)
}

// HaversineDistanceProvider is the default DistanceProvider: no network
// call, just haversine times a road factor.
type HaversineDistanceProvider struct{}

func (HaversineDistanceProvider) DistanceDuration(_ context.Context, a, b GeoPoint, tier ServiceType) (float64, float64, error) {
	d, dur := EstimateDistanceDuration(a, b, tier)
	return d, dur, nil
}
