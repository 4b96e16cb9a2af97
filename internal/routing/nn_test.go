package routing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

func TestNearestNeighborTour_RespectsPrecedence(t *testing.T) {
	var origin = fleet.GeoPoint{Lat: 0, Lng: 0}
	var stops = []fleet.Stop{
		{OrderID: "b", Kind: fleet.StopDelivery, Coord: fleet.GeoPoint{Lat: 0.001, Lng: 0}},
		{OrderID: "a", Kind: fleet.StopPickup, Coord: fleet.GeoPoint{Lat: 0.0005, Lng: 0}},
		{OrderID: "a", Kind: fleet.StopDelivery, Coord: fleet.GeoPoint{Lat: 0.002, Lng: 0}},
		{OrderID: "b", Kind: fleet.StopPickup, Coord: fleet.GeoPoint{Lat: 0.0002, Lng: 0}},
	}

	var tour = nearestNeighborTour(origin, stops, nil)
	require.NotNil(t, tour)
	require.True(t, validPrecedence(tour))
	require.Len(t, tour, 4)
}

func TestNearestNeighborTour_UnsatisfiablePrecedenceReturnsNil(t *testing.T) {
	var origin = fleet.GeoPoint{}
	var stops = []fleet.Stop{
		{OrderID: "orphan", Kind: fleet.StopDelivery, Coord: fleet.GeoPoint{Lat: 1, Lng: 1}},
	}

	var tour = nearestNeighborTour(origin, stops, nil)
	require.Nil(t, tour)
}

func TestTwoOpt_RejectsIncidentCrossingSwap(t *testing.T) {
	var origin = fleet.GeoPoint{Lat: 0, Lng: 0}
	var stops = []fleet.Stop{
		{OrderID: "a", Kind: fleet.StopPickup, Coord: fleet.GeoPoint{Lat: 0, Lng: 1}},
		{OrderID: "a", Kind: fleet.StopDelivery, Coord: fleet.GeoPoint{Lat: 0, Lng: 2}},
		{OrderID: "b", Kind: fleet.StopPickup, Coord: fleet.GeoPoint{Lat: 1, Lng: 0}},
		{OrderID: "b", Kind: fleet.StopDelivery, Coord: fleet.GeoPoint{Lat: 1, Lng: 2}},
	}

	var incidents = []fleet.TrafficIncident{
		{ID: "inc-1", Location: fleet.GeoPoint{Lat: 0.5, Lng: 0.5}, RadiusM: 20000, Severity: fleet.SeverityHigh, Status: fleet.IncidentActive},
	}

	var refined = twoOpt(origin, stops, incidents, 1.0, 20, nil)
	require.True(t, validPrecedence(refined))
	require.False(t, crossesBlockingIncident(origin, refined, incidents))
}

func TestCheapestInsertionTour_RespectsPrecedence(t *testing.T) {
	var origin = fleet.GeoPoint{}
	var stops []fleet.Stop
	for i := 0; i < 12; i++ {
		var lat = float64(i) * 0.001
		stops = append(stops,
			fleet.Stop{OrderID: string(rune('a' + i)), Kind: fleet.StopPickup, Coord: fleet.GeoPoint{Lat: lat, Lng: 0}},
			fleet.Stop{OrderID: string(rune('a' + i)), Kind: fleet.StopDelivery, Coord: fleet.GeoPoint{Lat: lat + 0.0005, Lng: 0}},
		)
	}

	var tour = cheapestInsertionTour(origin, stops, 1.3, nil)
	require.NotNil(t, tour)
	require.True(t, validPrecedence(tour))
	require.Len(t, tour, len(stops))
}
