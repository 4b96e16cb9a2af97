package escalation

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/dispatch"
	"github.com/ridrisa/barq-dispatch-core/internal/events"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/obs"
)

// escalationLog is one row of the escalation_logs audit stream (§6).
type escalationLog struct {
	OrderID string               `json:"order_id"`
	Type    fleet.EscalationType `json:"type"`
	Message string               `json:"message"`
	Action  string               `json:"action"`
}

// slaBreachRecord is one row of the sla_breaches audit stream (§6).
type slaBreachRecord struct {
	OrderID     string  `json:"order_id"`
	BreachMs    int64   `json:"breach_ms"`
	Penalty     float64 `json:"penalty"`
	Preventable bool    `json:"preventable"`
}

// Engine is the §4.5 autonomous escalation engine.
type Engine struct {
	orders      OrderStore
	drivers     DriverMachine
	routes      RouteTrigger
	routeLookup RouteStore
	audit       AuditSink
	bus         *events.Bus
	dispatch    ForceDispatcher
	zones       *dispatch.ZoneCache
	clock       fleet.Clock
	cfg         Config
	penalty     PenaltyFunc
	debounce    *debouncer
	log         obs.Logger

	mu            sync.Mutex
	candidateSeen map[string]bool // orderID -> a reassignment/force candidate existed at the last risk tick
}

func New(
	orders OrderStore,
	drivers DriverMachine,
	routes RouteTrigger,
	routeLookup RouteStore,
	audit AuditSink,
	bus *events.Bus,
	forceDispatcher ForceDispatcher,
	zones *dispatch.ZoneCache,
	clock fleet.Clock,
	cfg Config,
	penalty PenaltyFunc,
) *Engine {
	if penalty == nil {
		penalty = DefaultPenaltyFunc
	}
	return &Engine{
		orders: orders, drivers: drivers, routes: routes, routeLookup: routeLookup,
		audit: audit, bus: bus, dispatch: forceDispatcher, zones: zones,
		clock: clock, cfg: cfg, penalty: penalty,
		debounce:      newDebouncer(),
		candidateSeen: make(map[string]bool),
		log:           obs.Component("escalation"),
	}
}

// Tick runs one escalation scan over every non-terminal order (§4.5
// Escalation tick).
func (e *Engine) Tick(ctx context.Context) {
	var now = e.clock.Now()
	for _, o := range e.orders.All() {
		if ctx.Err() != nil {
			return
		}
		if o.Status.IsTerminal() {
			continue
		}
		e.evaluate(ctx, o, now)
	}
}

func (e *Engine) evaluate(ctx context.Context, o *fleet.Order, now time.Time) {
	var timeToSLA = o.TimeToSLA(now)

	if timeToSLA < 0 && !o.SLABreached {
		e.latchBreach(o.ID, now)
		o.SLABreached = true
	}

	switch {
	case (o.Status == fleet.OrderPending || o.Status == fleet.OrderPendingDriver) && timeToSLA < e.cfg.SLACriticalWindow:
		e.fire(o.ID, fleet.EscalationSLARiskCritical, fleet.SeverityAlertHigh,
			"time to SLA deadline below the critical window", func() string {
				if err := e.dispatch.ForceDispatch(ctx, o.ID); err != nil {
					e.log.Log(log.WarnLevel, log.Fields{"order_id": o.ID, "error": err.Error()}, "force dispatch failed")
					return "FORCE_DISPATCH_FAILED"
				}
				return "FORCE_DISPATCH"
			}, now)

	case o.Status == fleet.OrderAssigned && timeToSLA < e.cfg.SLAAssignedWindow && e.driverRunningLate(o):
		e.fire(o.ID, fleet.EscalationSLARiskAssigned, fleet.SeverityAlertHigh,
			"assigned driver's ETA exceeds the SLA deadline past its slack", func() string {
				return e.attemptReassign(ctx, o, "sla_risk_assigned", now)
			}, now)

	case o.Status == fleet.OrderAssigned && e.driverUnresponsive(o, now):
		e.fire(o.ID, fleet.EscalationDriverUnresponsive, fleet.SeverityAlertMedium,
			"no driver location update within the stuck threshold", func() string {
				return e.attemptReassign(ctx, o, "driver_unresponsive", now)
			}, now)

	case o.Status == fleet.OrderPickedUp && e.driverUnresponsive(o, now):
		e.fire(o.ID, fleet.EscalationStuckOrder, fleet.SeverityAlertHigh,
			"order picked up but no movement within the stuck threshold — reassignment is not possible in transit",
			func() string {
				e.bus.DispatchAlert.Publish(events.DispatchAlert{
					Severity: "HIGH", Type: "STUCK_ORDER", OrderID: o.ID,
					Message: "order has been stationary past the stuck threshold", At: now,
				})
				return "ALERTED"
			}, now)
	}
}

// fire applies the §4.5 Debounce rule, then runs action and writes the
// escalation_logs audit row recording its result.
func (e *Engine) fire(orderID string, etype fleet.EscalationType, severity fleet.AlertSeverity, message string, action func() string, now time.Time) {
	if !e.debounce.allow(orderID, etype, now, e.cfg.DebounceWindow) {
		return
	}

	var taken = action()

	e.mu.Lock()
	e.candidateSeen[orderID] = taken != "FORCE_DISPATCH_FAILED" && taken != "ALERTED" && taken != "NO_CANDIDATE"
	e.mu.Unlock()

	var entry = escalationLog{OrderID: orderID, Type: etype, Message: message, Action: taken}
	if err := e.audit.Append("escalation_logs", orderID, now, entry); err != nil {
		e.log.Log(log.WarnLevel, log.Fields{"order_id": orderID, "error": err.Error()}, "failed appending escalation_log")
	}

	obs.EscalationFiredTotal.WithLabelValues(string(etype)).Inc()
	e.bus.SLAAlert.Publish(events.SLAAlert{OrderID: orderID, Level: string(severity), Message: message, At: now})
}

// latchBreach sets SLABreached once, per the §3 invariant that it is a
// latch rather than a derived value: "once true it stays true regardless
// of later status changes". Conflicts here are expected and harmless — a
// concurrent writer already moved the order on; if the order is still
// non-terminal the next evaluate() pass latches it, and if it was
// terminated, OnOrderTerminated sees the passed deadline and writes the
// sla_breaches row without the latch.
func (e *Engine) latchBreach(orderID string, now time.Time) {
	var nonTerminal = []fleet.OrderStatus{fleet.OrderPending, fleet.OrderPendingDriver, fleet.OrderAssigned, fleet.OrderPickedUp}
	if _, err := e.orders.CompareAndUpdate(orderID, nonTerminal, func(o *fleet.Order) error {
		o.SLABreached = true
		return nil
	}); err != nil {
		e.log.Log(log.DebugLevel, log.Fields{"order_id": orderID, "error": err.Error()}, "sla breach latch raced with a status change")
	}
}

func (e *Engine) attemptReassign(ctx context.Context, o *fleet.Order, reason string, now time.Time) string {
	if e.reassign(ctx, o, reason, now) {
		return "REASSIGNED"
	}
	return "NO_CANDIDATE"
}

func (e *Engine) driverRunningLate(o *fleet.Order) bool {
	if o.DriverID == "" {
		return false
	}
	route, ok := e.routeLookup.ActiveFor(o.DriverID)
	if !ok {
		return false
	}
	for _, s := range route.Stops {
		if s.Kind == fleet.StopDelivery && s.OrderID == o.ID {
			return s.ETA.After(o.SLADeadline.Add(-e.cfg.SLAAssignedETASlack))
		}
	}
	return false
}

func (e *Engine) driverUnresponsive(o *fleet.Order, now time.Time) bool {
	if o.DriverID == "" {
		return false
	}
	d, err := e.drivers.Snapshot(o.DriverID)
	if err != nil {
		return false
	}
	return now.Sub(d.LastLocationAt) >= e.cfg.StuckThreshold
}

// OnOrderTerminated writes the sla_breaches audit row when an order
// reaches a terminal state while its SLABreached latch is set, or past its
// SLA deadline before any tick latched it (§4.5 Penalties). preventable
// follows whether a force-assign/reassignment
// candidate existed the last time this order's risk condition fired but
// no resolution followed.
func (e *Engine) OnOrderTerminated(o *fleet.Order, now time.Time) error {
	if !o.SLABreached && (o.SLADeadline.IsZero() || !now.After(o.SLADeadline)) {
		return nil
	}

	var breach = now.Sub(o.SLADeadline)
	if breach < 0 {
		breach = 0
	}

	e.mu.Lock()
	var preventable = e.candidateSeen[o.ID]
	delete(e.candidateSeen, o.ID)
	e.mu.Unlock()

	var rec = slaBreachRecord{
		OrderID:     o.ID,
		BreachMs:    breach.Milliseconds(),
		Penalty:     e.penalty(o.ServiceType, breach),
		Preventable: preventable,
	}
	if err := e.audit.Append("sla_breaches", o.ID, now, rec); err != nil {
		return err
	}

	obs.SLABreachTotal.WithLabelValues(string(o.ServiceType), boolLabel(preventable)).Inc()
	return nil
}

// OnDeliveryFailed implements the FAILED_DELIVERY row: debounce, log, and
// choose a recovery action by failure category (§4.5).
func (e *Engine) OnDeliveryFailed(orderID string, category fleet.FailureCategory, notes string, now time.Time) {
	var action = fleet.RecoveryFor(category)
	e.fire(orderID, fleet.EscalationFailedDelivery, fleet.SeverityAlertMedium,
		"delivery failed: "+notes, func() string { return string(action) }, now)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
