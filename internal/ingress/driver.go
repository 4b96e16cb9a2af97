package ingress

import (
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// DriverLocation is the §6 driver.location inbound event.
type DriverLocation struct {
	DriverID string
	Coord    fleet.GeoPoint
	At       time.Time
}

func (e DriverLocation) validate() error {
	if e.DriverID == "" {
		return &ValidationError{Event: "driver.location", Field: "driver_id", Message: "empty"}
	}
	if e.Coord.Lat < -90 || e.Coord.Lat > 90 {
		return &ValidationError{Event: "driver.location", Field: "coord.lat", Message: "out of range"}
	}
	if e.Coord.Lng < -180 || e.Coord.Lng > 180 {
		return &ValidationError{Event: "driver.location", Field: "coord.lng", Message: "out of range"}
	}
	if e.At.IsZero() {
		return &ValidationError{Event: "driver.location", Field: "ts", Message: "missing"}
	}
	return nil
}

// HandleDriverLocation updates a driver's live position, which feeds the
// escalation engine's DRIVER_UNRESPONSIVE/STUCK_ORDER stuck-detection
// (§4.5: "no driver location update within stuck_threshold").
func (a *Adapter) HandleDriverLocation(e DriverLocation) error {
	if err := e.validate(); err != nil {
		return err
	}
	return a.drivers.WithDriver(e.DriverID, func(d *fleet.Driver) error {
		if e.At.Before(d.LastLocationAt) {
			return nil // stale update, out of order — ignore silently
		}
		d.CurrentLocation = e.Coord
		d.LastLocationAt = e.At
		return nil
	})
}

// DriverStatusKind names the driver.status_event kinds of §6.
type DriverStatusKind string

const (
	DriverShiftStart DriverStatusKind = "shift_start"
	DriverShiftEnd   DriverStatusKind = "shift_end"
	DriverBreakStart DriverStatusKind = "break_start"
	DriverBreakEnd   DriverStatusKind = "break_end"
)

// DriverStatusEvent is the §6 driver.status_event inbound event.
type DriverStatusEvent struct {
	DriverID string
	Kind     DriverStatusKind
}

// statusEventTargets maps each status_event kind to the §4.1 target state
// and audit reason for the resulting TryTransition call.
var statusEventTargets = map[DriverStatusKind]fleet.DriverState{
	DriverShiftStart: fleet.DriverAvailable,
	DriverShiftEnd:   fleet.DriverOffline,
	DriverBreakStart: fleet.DriverOnBreak,
	DriverBreakEnd:   fleet.DriverAvailable,
}

func (e DriverStatusEvent) validate() error {
	if e.DriverID == "" {
		return &ValidationError{Event: "driver.status_event", Field: "driver_id", Message: "empty"}
	}
	if _, ok := statusEventTargets[e.Kind]; !ok {
		return &ValidationError{Event: "driver.status_event", Field: "kind", Message: "unrecognized: " + string(e.Kind)}
	}
	return nil
}

// HandleDriverStatusEvent requests the §4.1 transition matching kind. An
// illegal transition for the driver's current state (e.g. break_start
// while BUSY) is not a validation failure — it is an invariant violation
// the statemachine itself rejects; this handler just surfaces that error.
func (a *Adapter) HandleDriverStatusEvent(e DriverStatusEvent) error {
	if err := e.validate(); err != nil {
		return err
	}
	var target = statusEventTargets[e.Kind]
	var _, err = a.drivers.TryTransition(e.DriverID, target, string(e.Kind), "ingress")
	return err
}
