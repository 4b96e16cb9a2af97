package engine_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/config"
	"github.com/ridrisa/barq-dispatch-core/internal/engine"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/ingress"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	var cfg, err = config.Load(nil)
	require.NoError(t, err)
	cfg.Store.SqlitePath = filepath.Join(t.TempDir(), "audit.db")
	cfg.Dispatch.TickInterval = 20 * time.Millisecond
	cfg.Batching.TickInterval = 20 * time.Millisecond
	cfg.Escalation.TickInterval = 20 * time.Millisecond
	cfg.Route.PeriodicTick = 20 * time.Millisecond
	return cfg
}

func TestNew_WiresEveryEngineWithoutError(t *testing.T) {
	var cfg = testConfig(t)
	var clock = fleet.NewFixedClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	var e, err = engine.New(cfg, clock, fleet.HaversineDistanceProvider{})
	require.NoError(t, err)
	require.NotNil(t, e.Ingress)
	require.NotNil(t, e.Bus())
}

func TestEngine_RunAndShutdown(t *testing.T) {
	var cfg = testConfig(t)
	var clock = fleet.NewFixedClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	var e, err = engine.New(cfg, clock, fleet.HaversineDistanceProvider{})
	require.NoError(t, err)

	var ctx = context.Background()
	go e.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	var shutdownCtx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(shutdownCtx))
}

func TestEngine_DriverTransitionPublishesToBus(t *testing.T) {
	var cfg = testConfig(t)
	var clock = fleet.NewFixedClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	var e, err = engine.New(cfg, clock, fleet.HaversineDistanceProvider{})
	require.NoError(t, err)

	var sub = e.Bus().DriverStateChanged.Subscribe(4)
	e.Drivers.Register(&fleet.Driver{ID: "d1", Status: fleet.DriverOffline})

	require.NoError(t, e.Ingress.HandleDriverStatusEvent(ingress.DriverStatusEvent{
		DriverID: "d1", Kind: ingress.DriverShiftStart,
	}))

	select {
	case ev := <-sub:
		require.Equal(t, "d1", ev.DriverID)
		require.Equal(t, string(fleet.DriverAvailable), ev.To)
	case <-time.After(time.Second):
		t.Fatal("expected a DriverStateChanged event")
	}
}

func TestEngine_IngestedOrderIsVisibleToDispatchTick(t *testing.T) {
	var cfg = testConfig(t)
	var clock = fleet.NewFixedClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	var e, err = engine.New(cfg, clock, fleet.HaversineDistanceProvider{})
	require.NoError(t, err)

	require.NoError(t, e.Ingress.HandleOrderCreated(ingress.OrderCreated{Order: &fleet.Order{
		ID: "o1", ServiceType: fleet.ServiceTypeBarq, LoadKg: 2,
		CreatedAt: clock.Now(), SLADeadline: clock.Now().Add(time.Hour),
	}}))

	var stored, getErr = e.Orders.Get("o1")
	require.NoError(t, getErr)
	require.Equal(t, fleet.OrderPending, stored.Status)
}
