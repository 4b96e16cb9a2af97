package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/batching"
	"github.com/ridrisa/barq-dispatch-core/internal/config"
	"github.com/ridrisa/barq-dispatch-core/internal/dispatch"
	"github.com/ridrisa/barq-dispatch-core/internal/escalation"
	"github.com/ridrisa/barq-dispatch-core/internal/events"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/ingress"
	"github.com/ridrisa/barq-dispatch-core/internal/obs"
	"github.com/ridrisa/barq-dispatch-core/internal/routing"
	"github.com/ridrisa/barq-dispatch-core/internal/statemachine"
	"github.com/ridrisa/barq-dispatch-core/internal/store/sqlite"
)

// zoneCacheMaxDrivers/zoneCacheRecentZones size the Zone-score LRU
// (dispatch.ZoneCache); these are not operator-tunable knobs in §6, just
// a generous bound on a derived cache.
const (
	zoneCacheMaxDrivers  = 20000
	zoneCacheRecentZones = 20
)

// Engine is the single composition root of the dispatch core: it owns
// every in-memory table, the statemachine, the audit store, the event
// bus, the bounded worker pool, and the four engines (Dispatch, Batching,
// Route Optimizer, Escalation) that tick against them, per the Design
// Notes' "singletons -> explicit Engine value" directive. One Engine per
// process; lifecycle is New -> Run -> Shutdown.
type Engine struct {
	cfg *config.Config
	log obs.Logger

	Orders    *OrderTable
	Routes    *RouteTable
	Batches   *BatchTable
	Incidents *IncidentTable
	Drivers   *statemachine.Machine

	bus   *events.Bus
	audit *sqlite.Store
	pool  *WorkerPool

	dispatcher *dispatch.Dispatcher
	batcher    *batching.Engine
	optimizer  *routing.Optimizer
	escalator  *escalation.Engine
	Ingress    *ingress.Adapter

	cancel context.CancelFunc
	done   chan struct{}
}

// stateAudit bridges statemachine.Machine's AuditSink to both the
// driver_transitions sqlite stream and the bus's DriverStateChanged
// topic, so every committed transition — including auto-transitions like
// the mandatory break — becomes both a durable audit row and a live
// event, without Dispatch/Batching/Escalation each having to publish it
// themselves.
type stateAudit struct {
	store *sqlite.Store
	bus   *events.Bus
	log   obs.Logger
}

func (a *stateAudit) Append(entry statemachine.AuditEntry) {
	if err := a.store.Append("driver_transitions", entry.DriverID, entry.At, entry); err != nil {
		a.log.Log(log.WarnLevel, log.Fields{"driver_id": entry.DriverID, "error": err.Error()}, "failed appending driver_transitions row")
	}
	a.bus.DriverStateChanged.Publish(events.DriverStateChanged{
		DriverID: entry.DriverID,
		From:     string(entry.From),
		To:       string(entry.To),
		Reason:   entry.Reason,
		At:       entry.At,
	})
}

// New wires every engine against cfg and clock. distance is the
// fleet.DistanceProvider Dispatch and routing's ETA stamping use;
// fleet.HaversineDistanceProvider{} is the default.
func New(cfg *config.Config, clock fleet.Clock, distance fleet.DistanceProvider) (*Engine, error) {
	var audit, err = sqlite.Open(cfg.Store.SqlitePath)
	if err != nil {
		return nil, fmt.Errorf("opening audit store: %w", err)
	}

	var bus = events.NewBus()
	var orders = NewOrderTable()
	var routes = NewRouteTable()
	var batches = NewBatchTable()
	var incidents = NewIncidentTable()

	var stateLog = obs.Component("statemachine")
	var drivers = statemachine.New(clock, &stateAudit{store: audit, bus: bus, log: stateLog})

	var pool = NewWorkerPool(context.Background(), cfg.Route.WorkerPoolSize, 64)

	var signingKey = make([]byte, 32)
	if _, err := rand.Read(signingKey); err != nil {
		audit.Close()
		return nil, fmt.Errorf("generating offer lease signing key: %w", err)
	}
	var offers = dispatch.NewOfferBook(signingKey)
	var zones = dispatch.NewZoneCache(zoneCacheMaxDrivers, zoneCacheRecentZones)

	var optimizer = routing.New(routes, audit, bus, clock,
		routing.Config{
			MinImprovement: cfg.Route.MinImprovement,
			NNCap:          cfg.Route.NNCap,
			Max2OptPasses:  cfg.Route.Max2OptPasses,
			RoadFactor:     cfg.Route.RoadFactor,
		},
	)

	var trigger = &routeTrigger{
		orders: orders, routes: routes, incidents: incidents, drivers: drivers,
		optimizer: optimizer, pool: pool, log: obs.Component("route_trigger"),
	}

	var dispatcher = dispatch.New(
		orders, drivers, trigger, audit, bus, zones, offers, dispatch.AutoAcceptDecider{}, distance, clock,
		dispatch.Config{
			TickInterval:        cfg.Dispatch.TickInterval,
			RadiusKm:            cfg.Dispatch.RadiusKm,
			MinScore:            cfg.Dispatch.MinScore,
			Weights:             dispatch.Weights{Proximity: cfg.Dispatch.WeightProximity, Performance: cfg.Dispatch.WeightPerformance, Capacity: cfg.Dispatch.WeightCapacity, Zone: cfg.Dispatch.WeightZone},
			OfferTimeout:        cfg.Dispatch.OfferTimeout,
			MaxOffersPerOrder:   cfg.Dispatch.MaxOffersPerOrder,
			CooldownAfterReject: cfg.Dispatch.CooldownAfterReject,
			ForceThreshold:      cfg.Dispatch.ForceThreshold,
			MaxRadiusMultiple:   cfg.Dispatch.MaxRadiusMultiple,
			RadiusGrowthFactor:  cfg.Dispatch.RadiusGrowthFactor,
		},
	)

	var batcher = batching.New(orders, batches, bus, clock,
		batching.Config{
			PickupClusterKm: cfg.Batching.PickupClusterKm,
			DropSpanKm:      cfg.Batching.DropSpanKm,
			MaxBatchSize:    cfg.Batching.MaxBatchSize,
		},
	)

	// Reassignment boosts the performance and zone weights by 1.5x, then
	// rescales all four so they still sum to 1.
	var boostedPerformance = cfg.Dispatch.WeightPerformance * 1.5
	var boostedZone = cfg.Dispatch.WeightZone * 1.5
	var reassignSum = cfg.Dispatch.WeightProximity + boostedPerformance + cfg.Dispatch.WeightCapacity + boostedZone

	var escalator = escalation.New(orders, drivers, trigger, routes, audit, bus, dispatcher, zones, clock,
		escalation.Config{
			DebounceWindow:      cfg.Escalation.DebounceWindow,
			StuckThreshold:      cfg.Escalation.StuckThreshold,
			MaxReassignments:    cfg.Escalation.MaxReassignments,
			SLACriticalWindow:   cfg.Escalation.SLACriticalWindow,
			SLAAssignedWindow:   cfg.Escalation.SLAAssignedWindow,
			SLAAssignedETASlack: cfg.Escalation.SLAAssignedETASlack,
			ReassignRadiusKm:    cfg.Dispatch.RadiusKm,
			ReassignWeights: dispatch.Weights{
				Proximity:   cfg.Dispatch.WeightProximity / reassignSum,
				Performance: boostedPerformance / reassignSum,
				Capacity:    cfg.Dispatch.WeightCapacity / reassignSum,
				Zone:        boostedZone / reassignSum,
			},
		},
		nil, // DefaultPenaltyFunc
	)

	var adapter = ingress.New(orders, drivers, incidents, batcher, escalator, audit, clock)

	return &Engine{
		cfg: cfg, log: obs.Component("engine"),
		Orders: orders, Routes: routes, Batches: batches, Incidents: incidents, Drivers: drivers,
		bus: bus, audit: audit, pool: pool,
		dispatcher: dispatcher, batcher: batcher, optimizer: optimizer, escalator: escalator,
		Ingress: adapter,
		done:    make(chan struct{}),
	}, nil
}

// Bus exposes the outbound event bus for subscribers (e.g. cmd/dispatchd's
// alert console).
func (e *Engine) Bus() *events.Bus { return e.bus }

// Run starts the four ticking loops (Dispatch, Batching, Route Optimizer's
// periodic per-driver tick, Escalation) as independent goroutines and
// blocks until ctx is cancelled. Each loop runs on its own cfg-driven
// cadence, per §4's independent-tick framing for each engine.
func (e *Engine) Run(ctx context.Context) {
	var runCtx context.Context
	runCtx, e.cancel = context.WithCancel(ctx)

	go e.loop(runCtx, e.cfg.Dispatch.TickInterval, func(ctx context.Context) { e.dispatcher.Tick(ctx) })
	go e.loop(runCtx, e.cfg.Batching.TickInterval, func(context.Context) { e.batcher.Tick() })
	go e.loop(runCtx, e.cfg.Escalation.TickInterval, func(ctx context.Context) { e.escalator.Tick(ctx) })
	go e.routeOptimizerLoop(runCtx)

	<-runCtx.Done()
	close(e.done)
}

// Shutdown cancels every running loop and waits for the worker pool to
// drain, then closes the audit store.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.pool.Close()
	e.pool.Wait()
	return e.audit.Close()
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	var t = time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick(ctx)
		}
	}
}

// primaryTier picks the service tier used for a driver's road-factor ETA
// stamping during periodic re-optimization. A driver's ServiceTypes lists
// every tier it may serve; the first is used as a representative value
// since road-factor only affects speed, not route legality.
func primaryTier(d *fleet.Driver) fleet.ServiceType {
	if len(d.ServiceTypes) == 0 {
		return fleet.ServiceTypeBarq
	}
	return d.ServiceTypes[0]
}

// routeOptimizerLoop runs the §4.4 periodic per-driver re-optimization:
// every Route.PeriodicTick, every driver with an active route is
// resubmitted to the worker pool against the currently-active incidents.
func (e *Engine) routeOptimizerLoop(ctx context.Context) {
	var t = time.NewTicker(e.cfg.Route.PeriodicTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, d := range e.Drivers.All() {
				var route, ok = e.Routes.ActiveFor(d.ID)
				if !ok || len(route.Stops) == 0 {
					continue
				}
				var driverID = d.ID
				var origin = d.CurrentLocation
				var stops = route.Stops
				var tier = primaryTier(d)
				e.pool.Submit(driverID, func(context.Context) {
					if err := e.optimizer.Optimize(driverID, origin, stops, tier, e.Incidents.Active(), "periodic"); err != nil {
						e.log.Log(log.DebugLevel, log.Fields{"driver_id": driverID, "error": err.Error()}, "periodic route re-optimization declined")
					}
				})
			}
		}
	}
}
