package batching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

func testCfg() Config {
	return Config{PickupClusterKm: 2, DropSpanKm: 8, MaxBatchSize: 6}
}

func TestCluster_GroupsCompatibleNearbyOrders(t *testing.T) {
	var now = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var clock = fleet.NewFixedClock(now)

	var a = &fleet.Order{
		ID: "a", ServiceType: fleet.ServiceTypeBarq, LoadKg: 1,
		Pickup: fleet.GeoPoint{Lat: 24.70, Lng: 46.67}, Dropoff: fleet.GeoPoint{Lat: 24.72, Lng: 46.69},
		SLADeadline: now.Add(2 * time.Hour),
	}
	var b = &fleet.Order{
		ID: "b", ServiceType: fleet.ServiceTypeBarq, LoadKg: 1,
		Pickup: fleet.GeoPoint{Lat: 24.705, Lng: 46.675}, Dropoff: fleet.GeoPoint{Lat: 24.725, Lng: 46.695},
		SLADeadline: now.Add(3 * time.Hour),
	}
	var farAway = &fleet.Order{
		ID: "c", ServiceType: fleet.ServiceTypeBarq, LoadKg: 1,
		Pickup: fleet.GeoPoint{Lat: 25.50, Lng: 47.50}, Dropoff: fleet.GeoPoint{Lat: 25.55, Lng: 47.55},
		SLADeadline: now.Add(4 * time.Hour),
	}

	var clusters = Cluster([]*fleet.Order{a, b, farAway}, testCfg(), clock)

	require.Len(t, clusters, 1)
	require.Len(t, clusters[0], 2)
}

func TestCluster_DiscardsSingletons(t *testing.T) {
	var now = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var clock = fleet.NewFixedClock(now)

	var lone = &fleet.Order{
		ID: "lone", ServiceType: fleet.ServiceTypeBarq, LoadKg: 1,
		Pickup: fleet.GeoPoint{Lat: 24.70, Lng: 46.67}, Dropoff: fleet.GeoPoint{Lat: 24.72, Lng: 46.69},
		SLADeadline: now.Add(time.Hour),
	}

	var clusters = Cluster([]*fleet.Order{lone}, testCfg(), clock)
	require.Empty(t, clusters)
}

func TestCluster_RespectsMaxBatchSize(t *testing.T) {
	var now = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var clock = fleet.NewFixedClock(now)
	var cfg = Config{PickupClusterKm: 5, DropSpanKm: 20, MaxBatchSize: 2}

	var orders []*fleet.Order
	for i := 0; i < 5; i++ {
		orders = append(orders, &fleet.Order{
			ID: string(rune('a' + i)), ServiceType: fleet.ServiceTypeBarq, LoadKg: 1,
			Pickup:      fleet.GeoPoint{Lat: 24.70 + float64(i)*0.001, Lng: 46.67},
			Dropoff:     fleet.GeoPoint{Lat: 24.72, Lng: 46.69},
			SLADeadline: now.Add(time.Duration(i+1) * time.Hour),
		})
	}

	var clusters = Cluster(orders, cfg, clock)
	for _, c := range clusters {
		require.LessOrEqual(t, len(c), cfg.MaxBatchSize)
	}
}

func TestCompatible_RejectsDifferentServiceType(t *testing.T) {
	var now = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var clock = fleet.NewFixedClock(now)

	var a = &fleet.Order{ServiceType: fleet.ServiceTypeBarq, SLADeadline: now.Add(time.Hour)}
	var b = &fleet.Order{ServiceType: fleet.ServiceTypeBullet, SLADeadline: now.Add(time.Hour)}

	require.False(t, Compatible(a, b, testCfg(), clock))
}
