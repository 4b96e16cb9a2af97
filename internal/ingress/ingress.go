// Package ingress is the narrow, validated contract for the six inbound
// event kinds of spec §6 (order.created, order.cancelled, driver.location,
// driver.status_event, delivery.pickup/completed/failed,
// traffic.incident/resolved). Each handler validates its event first and
// returns a *ValidationError with no state change on anything malformed,
// per §7's "malformed inbound event... rejected at the boundary, no state
// change" rule — generalized from the teacher's inbound-message validation
// boundary in go/ingest/ws_api.go (validate-then-dispatch, reject
// malformed frames before they ever reach the ingester).
//
// The transport that would deliver these events over the wire (HTTP,
// websocket, a message queue) is explicitly out of scope (§1); this
// package is the contract that transport calls into.
package ingress

import (
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/obs"
)

// Adapter wires the six inbound event handlers to the engine's mutable
// tables and the batching/escalation engines that need to react to order
// lifecycle changes.
type Adapter struct {
	orders     OrderSink
	drivers    DriverSink
	incidents  IncidentSink
	batches    BatchNotifier
	escalation EscalationNotifier
	audit      AuditSink
	clock      fleet.Clock
	log        obs.Logger
}

// AuditSink persists one append-only audit row — sqlite.Store.Append
// satisfies this. Only traffic.incident/resolved write through it; the
// other five event kinds mutate the in-process tables directly.
type AuditSink interface {
	Append(table, entityID string, at time.Time, payload any) error
}

func New(
	orders OrderSink,
	drivers DriverSink,
	incidents IncidentSink,
	batches BatchNotifier,
	escalation EscalationNotifier,
	audit AuditSink,
	clock fleet.Clock,
) *Adapter {
	return &Adapter{
		orders: orders, drivers: drivers, incidents: incidents,
		batches: batches, escalation: escalation, audit: audit,
		clock: clock, log: obs.Component("ingress"),
	}
}
