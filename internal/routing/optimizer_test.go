package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/events"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

type fakeRouteStore struct {
	active map[string]*fleet.Route
}

func newFakeRouteStore() *fakeRouteStore {
	return &fakeRouteStore{active: make(map[string]*fleet.Route)}
}

func (f *fakeRouteStore) ActiveFor(driverID string) (*fleet.Route, bool) {
	r, ok := f.active[driverID]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

func (f *fakeRouteStore) Activate(newRoute *fleet.Route) {
	f.active[newRoute.DriverID] = newRoute.Clone()
}

type fakeAudit struct {
	rows []struct {
		table    string
		entityID string
		payload  any
	}
}

func (f *fakeAudit) Append(table, entityID string, at time.Time, payload any) error {
	f.rows = append(f.rows, struct {
		table    string
		entityID string
		payload  any
	}{table, entityID, payload})
	return nil
}

func testRouteConfig() Config {
	return Config{MinImprovement: 0.05, NNCap: 10, Max2OptPasses: 20, RoadFactor: 1.3}
}

func TestOptimizer_Optimize_ActivatesFirstRouteUnconditionally(t *testing.T) {
	var now = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	var routes = newFakeRouteStore()
	var audit = &fakeAudit{}
	var bus = events.NewBus()
	var optimized = bus.RouteOptimized.Subscribe(4)

	var optimizer = New(routes, audit, bus, fleet.NewFixedClock(now), testRouteConfig())

	var stops = []fleet.Stop{
		{OrderID: "o1", Kind: fleet.StopPickup, Coord: fleet.GeoPoint{Lat: 0, Lng: 0.01}},
		{OrderID: "o1", Kind: fleet.StopDelivery, Coord: fleet.GeoPoint{Lat: 0, Lng: 0.02}},
	}

	require.NoError(t, optimizer.Optimize("driver-1", fleet.GeoPoint{}, stops, fleet.ServiceTypeBarq, nil, "periodic_tick"))

	active, ok := routes.ActiveFor("driver-1")
	require.True(t, ok)
	require.Len(t, active.Stops, 2)
	require.Greater(t, active.TotalDistanceKm, 0.0)
	require.Len(t, audit.rows, 1)

	select {
	case ev := <-optimized:
		require.Equal(t, "driver-1", ev.DriverID)
	default:
		t.Fatal("expected a RouteOptimized event")
	}
}

func TestOptimizer_Optimize_DiscardsBelowMinImprovement(t *testing.T) {
	var now = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	var routes = newFakeRouteStore()
	var audit = &fakeAudit{}
	var bus = events.NewBus()

	var optimizer = New(routes, audit, bus, fleet.NewFixedClock(now), testRouteConfig())

	var stops = []fleet.Stop{
		{OrderID: "o1", Kind: fleet.StopPickup, Coord: fleet.GeoPoint{Lat: 0, Lng: 0.01}},
		{OrderID: "o1", Kind: fleet.StopDelivery, Coord: fleet.GeoPoint{Lat: 0, Lng: 0.02}},
	}

	// seed an existing "better" active route so the next optimization is
	// longer than it (a negative improvement) and should be discarded.
	routes.Activate(&fleet.Route{
		ID: "r0", DriverID: "driver-1", Stops: stops,
		TotalDistanceKm: 0.001, TotalDurationMin: 0.01, OptimizedAt: now,
	})

	require.NoError(t, optimizer.Optimize("driver-1", fleet.GeoPoint{}, stops, fleet.ServiceTypeBarq, nil, "periodic_tick"))

	active, ok := routes.ActiveFor("driver-1")
	require.True(t, ok)
	require.Equal(t, "r0", active.ID)
	require.Len(t, audit.rows, 1)
}

func TestOptimizer_Optimize_PrecedenceViolationRaisesAlertAndLeavesRouteUnchanged(t *testing.T) {
	var now = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	var routes = newFakeRouteStore()
	var audit = &fakeAudit{}
	var bus = events.NewBus()
	var alerts = bus.DispatchAlert.Subscribe(4)

	var optimizer = New(routes, audit, bus, fleet.NewFixedClock(now), testRouteConfig())

	var orphanDelivery = []fleet.Stop{
		{OrderID: "o1", Kind: fleet.StopDelivery, Coord: fleet.GeoPoint{Lat: 0, Lng: 0.01}},
	}

	err := optimizer.Optimize("driver-1", fleet.GeoPoint{}, orphanDelivery, fleet.ServiceTypeBarq, nil, "event_triggered")
	require.Error(t, err)

	_, ok := routes.ActiveFor("driver-1")
	require.False(t, ok)

	select {
	case alert := <-alerts:
		require.Equal(t, "HIGH", alert.Severity)
		require.Equal(t, "ROUTE_OPTIMIZATION_FAILED", alert.Type)
	default:
		t.Fatal("expected a HIGH severity DispatchAlert")
	}
}
