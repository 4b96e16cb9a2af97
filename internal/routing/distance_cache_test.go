package routing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

func TestDistanceCache_MemoizesRepeatedLeg(t *testing.T) {
	var cache = newDistanceCache()
	var a = fleet.GeoPoint{Lat: 0, Lng: 0}
	var b = fleet.GeoPoint{Lat: 0.01, Lng: 0.01}

	var first = cache.distance(a, b)
	var second = cache.distance(a, b)
	require.Equal(t, first, second)
	require.Equal(t, fleet.Haversine(a, b), first)
}

func TestDistanceCache_NilReceiverFallsBackUncached(t *testing.T) {
	var cache *distanceCache
	var a = fleet.GeoPoint{Lat: 1, Lng: 1}
	var b = fleet.GeoPoint{Lat: 2, Lng: 2}
	require.Equal(t, fleet.Haversine(a, b), cache.distance(a, b))
}
