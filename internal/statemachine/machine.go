// Package statemachine is the shared invariant substrate of spec §4.1: the
// only path by which a Driver's Status changes. Dispatch, Batching, and
// Escalation call into it; none of them writes Status directly.
//
// Per-driver operations are serialized through a per-id mutex (an actor,
// not a global lock), grounded on the teacher's per-shard ownership in
// go/runtime/task.go (taskBase/taskTerm: one owner goroutine mutates a
// shard's term, never two at once). Concurrent transitions on different
// drivers never block one another.
package statemachine

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/obs"
)

// transitions is the allowed-transition table of spec §4.1.
var transitions = map[fleet.DriverState]map[fleet.DriverState]bool{
	fleet.DriverOffline: {
		fleet.DriverAvailable: true,
	},
	fleet.DriverAvailable: {
		fleet.DriverBusy:    true,
		fleet.DriverOnBreak: true,
		fleet.DriverOffline: true,
	},
	fleet.DriverBusy: {
		fleet.DriverReturning: true,
		fleet.DriverAvailable: true,
		fleet.DriverOffline:   true,
	},
	fleet.DriverReturning: {
		fleet.DriverAvailable: true,
		fleet.DriverOnBreak:   true,
		fleet.DriverOffline:   true,
	},
	fleet.DriverOnBreak: {
		fleet.DriverAvailable: true,
		fleet.DriverOffline:   true,
	},
}

// AuditEntry is one row of the driver transition audit stream (append-only,
// §3/§6). Every transition — including auto-transitions like the mandatory
// break — produces exactly one of these.
type AuditEntry struct {
	DriverID string
	From     fleet.DriverState
	To       fleet.DriverState
	Reason   string
	Actor    string
	At       time.Time
}

// AuditSink receives every committed transition. Implementations must not
// block for long — they are called with the driver's actor lock held.
type AuditSink interface {
	Append(AuditEntry)
}

// driverSlot owns one driver's mutable state behind its own mutex.
type driverSlot struct {
	mu sync.Mutex
	d  *fleet.Driver
}

// Machine is the driver state machine: a registry of per-driver actors plus
// the transition table and audit stream. One Machine per process, owned by
// the Engine (spec's Design Notes: "singletons → explicit value").
type Machine struct {
	clock fleet.Clock
	audit AuditSink
	log   obs.Logger

	mu      sync.RWMutex
	drivers map[string]*driverSlot
}

func New(clock fleet.Clock, audit AuditSink) *Machine {
	return &Machine{
		clock:   clock,
		audit:   audit,
		log:     obs.Component("statemachine"),
		drivers: make(map[string]*driverSlot),
	}
}

// Register adds a driver to the machine. Intended for initial fleet load
// and for onboarding a new driver; it is not itself a transition and is not
// audited.
func (m *Machine) Register(d *fleet.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = &driverSlot{d: d}
}

func (m *Machine) slot(driverID string) (*driverSlot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.drivers[driverID]
	return s, ok
}

// Snapshot returns a deep copy of a driver's current state, safe to read
// without holding any lock.
func (m *Machine) Snapshot(driverID string) (*fleet.Driver, error) {
	s, ok := m.slot(driverID)
	if !ok {
		return nil, &DriverNotFoundError{DriverID: driverID}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.Clone(), nil
}

// All returns a snapshot of every registered driver.
func (m *Machine) All() []*fleet.Driver {
	m.mu.RLock()
	ids := make([]string, 0, len(m.drivers))
	for id := range m.drivers {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	out := make([]*fleet.Driver, 0, len(ids))
	for _, id := range ids {
		if d, err := m.Snapshot(id); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// WithDriver runs fn with exclusive access to the driver's mutable state.
// This is the actor boundary: every mutation of a Driver's non-Status
// fields (active order list, load, metrics) must go through here, so that
// Dispatch/Batching/Escalation writes to one driver never interleave
// (§5: "Per driver: all state transitions, route swaps, and active-order
// mutations are serialized").
//
// fn must not call back into the Machine for the same driver id, or it
// will deadlock.
func (m *Machine) WithDriver(driverID string, fn func(d *fleet.Driver) error) error {
	s, ok := m.slot(driverID)
	if !ok {
		return &DriverNotFoundError{DriverID: driverID}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.d)
}

// TryTransition is the machine's one atomic operation (spec §4.1):
// Ok(new_state) | Err(InvalidTransition | DriverNotFound). It is a pure
// function of (current_state, target, caps) for a given driver, modulo the
// midnight-crossing daily reset, which is itself deterministic in
// (state_changed_at, now).
func (m *Machine) TryTransition(driverID string, target fleet.DriverState, reason, actor string) (fleet.DriverState, error) {
	s, ok := m.slot(driverID)
	if !ok {
		return "", &DriverNotFoundError{DriverID: driverID}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var from = s.d.Status
	if !transitions[from][target] {
		return "", &InvalidTransitionError{DriverID: driverID, From: string(from), To: string(target)}
	}

	var now = m.clock.Now()

	if from == fleet.DriverOffline && target == fleet.DriverAvailable {
		dailyResetIfCrossedMidnight(s.d, now)
	}

	s.d.PreviousStatus = from
	s.d.Status = target
	s.d.StateChangedAt = now

	m.audit.Append(AuditEntry{
		DriverID: driverID,
		From:     from,
		To:       target,
		Reason:   reason,
		Actor:    actor,
		At:       now,
	})

	m.log.Log(log.InfoLevel, nil, fmt.Sprintf("driver %s transitioned %s -> %s (%s)", driverID, from, target, reason))

	return target, nil
}

// dailyResetIfCrossedMidnight resolves the Open Question of §9: an
// OFFLINE -> AVAILABLE transition resets hours_worked_today and
// consecutive_deliveries once local-midnight has passed since the driver's
// last state change, since the core has no external cron for the daily
// reset (DESIGN.md Open Question 1).
func dailyResetIfCrossedMidnight(d *fleet.Driver, now time.Time) {
	if crossedMidnight(d.StateChangedAt, now) {
		d.HoursWorkedToday = 0
		d.ConsecutiveDeliveries = 0
		d.CompletedToday = 0
	}
}

func crossedMidnight(prev, now time.Time) bool {
	if prev.IsZero() {
		return false
	}
	py, pm, pd := prev.Date()
	ny, nm, nd := now.Date()
	return py != ny || pm != nm || pd != nd
}

// RecordDeliveryCompleted applies the post-delivery bookkeeping of §4.1:
// consecutive_deliveries += 1, and once it reaches max_consecutive the
// machine auto-transitions AVAILABLE -> ON_BREAK with reason
// "mandatory_break" and resets the counter. Returns whether the auto-break
// fired.
func (m *Machine) RecordDeliveryCompleted(driverID string, onTime bool) (autoBreak bool, err error) {
	s, ok := m.slot(driverID)
	if !ok {
		return false, &DriverNotFoundError{DriverID: driverID}
	}

	s.mu.Lock()
	var d = s.d
	d.ConsecutiveDeliveries++
	d.CompletedToday++
	d.OnTimeRate = updateOnTimeRate(d.OnTimeRate, d.CompletedToday, onTime)

	var mustBreak = d.ConsecutiveDeliveries >= d.MaxConsecutive && d.Status == fleet.DriverAvailable
	s.mu.Unlock()

	if !mustBreak {
		return false, nil
	}

	if _, err := m.TryTransition(driverID, fleet.DriverOnBreak, "mandatory_break", "engine"); err != nil {
		return false, err
	}

	s.mu.Lock()
	d.ConsecutiveDeliveries = 0
	s.mu.Unlock()

	return true, nil
}

// updateOnTimeRate maintains a simple cumulative-average on-time rate.
// completedToday is the delivery count *after* incrementing for this
// delivery, so completedToday >= 1 here.
func updateOnTimeRate(prevRate float64, completedToday int, onTime bool) float64 {
	if completedToday <= 1 {
		if onTime {
			return 1.0
		}
		return 0.0
	}
	var n = float64(completedToday)
	var outcome = 0.0
	if onTime {
		outcome = 1.0
	}
	return prevRate + (outcome-prevRate)/n
}
