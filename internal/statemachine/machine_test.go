package statemachine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
	"github.com/ridrisa/barq-dispatch-core/internal/statemachine"
)

type memAudit struct {
	entries []statemachine.AuditEntry
}

func (m *memAudit) Append(e statemachine.AuditEntry) { m.entries = append(m.entries, e) }

func newMachine(t *testing.T, now time.Time) (*statemachine.Machine, *memAudit, *fleet.FixedClock) {
	t.Helper()
	var clock = fleet.NewFixedClock(now)
	var audit = &memAudit{}
	return statemachine.New(clock, audit), audit, clock
}

func testDriver(id string) *fleet.Driver {
	return &fleet.Driver{
		ID:              id,
		Status:          fleet.DriverOffline,
		MaxConsecutive:  5,
		MaxWorkingHours: 8,
		OnTimeRate:      1.0,
	}
}

func TestTryTransition_AllowedPath(t *testing.T) {
	var m, audit, _ = newMachine(t, time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC))
	m.Register(testDriver("d1"))

	state, err := m.TryTransition("d1", fleet.DriverAvailable, "shift_start", "driver")
	require.NoError(t, err)
	require.Equal(t, fleet.DriverAvailable, state)

	state, err = m.TryTransition("d1", fleet.DriverBusy, "order_assigned", "dispatch")
	require.NoError(t, err)
	require.Equal(t, fleet.DriverBusy, state)

	require.Len(t, audit.entries, 2)
	require.Equal(t, fleet.DriverOffline, audit.entries[0].From)
	require.Equal(t, fleet.DriverAvailable, audit.entries[0].To)
}

func TestTryTransition_Invalid(t *testing.T) {
	var m, _, _ = newMachine(t, time.Now())
	m.Register(testDriver("d1"))

	_, err := m.TryTransition("d1", fleet.DriverBusy, "order_assigned", "dispatch")
	require.Error(t, err)
	var invalidErr *statemachine.InvalidTransitionError
	require.ErrorAs(t, err, &invalidErr)
}

func TestTryTransition_DriverNotFound(t *testing.T) {
	var m, _, _ = newMachine(t, time.Now())
	_, err := m.TryTransition("ghost", fleet.DriverAvailable, "shift_start", "driver")
	require.Error(t, err)
	var notFound *statemachine.DriverNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestTryTransition_IsPureGivenSameInputs(t *testing.T) {
	// §8: "try_transition is a pure function of (current_state, target,
	// caps) and returns identical results for identical inputs."
	var m1, _, _ = newMachine(t, time.Now())
	var m2, _, _ = newMachine(t, time.Now())
	m1.Register(testDriver("d1"))
	m2.Register(testDriver("d1"))

	s1, err1 := m1.TryTransition("d1", fleet.DriverAvailable, "shift_start", "driver")
	s2, err2 := m2.TryTransition("d1", fleet.DriverAvailable, "shift_start", "driver")

	require.Equal(t, err1, err2)
	require.Equal(t, s1, s2)
}

func TestMandatoryBreakOnMaxConsecutive(t *testing.T) {
	var m, audit, _ = newMachine(t, time.Now())
	var d = testDriver("d1")
	d.MaxConsecutive = 2
	d.Status = fleet.DriverAvailable
	m.Register(d)

	fired, err := m.RecordDeliveryCompleted("d1", true)
	require.NoError(t, err)
	require.False(t, fired)

	fired, err = m.RecordDeliveryCompleted("d1", true)
	require.NoError(t, err)
	require.True(t, fired)

	snap, err := m.Snapshot("d1")
	require.NoError(t, err)
	require.Equal(t, fleet.DriverOnBreak, snap.Status)
	require.Equal(t, 0, snap.ConsecutiveDeliveries)

	var last = audit.entries[len(audit.entries)-1]
	require.Equal(t, "mandatory_break", last.Reason)
}

func TestDailyResetOnMidnightCrossing(t *testing.T) {
	var m, _, clock = newMachine(t, time.Date(2026, 7, 29, 23, 0, 0, 0, time.UTC))
	var d = testDriver("d1")
	d.Status = fleet.DriverOffline
	d.StateChangedAt = clock.Now()
	d.HoursWorkedToday = 6
	d.ConsecutiveDeliveries = 3
	m.Register(d)

	clock.Advance(2 * time.Hour) // crosses into 2026-07-30

	_, err := m.TryTransition("d1", fleet.DriverAvailable, "shift_start", "driver")
	require.NoError(t, err)

	snap, err := m.Snapshot("d1")
	require.NoError(t, err)
	require.Zero(t, snap.HoursWorkedToday)
	require.Zero(t, snap.ConsecutiveDeliveries)
}

func TestWithDriver_SerializesMutation(t *testing.T) {
	var m, _, _ = newMachine(t, time.Now())
	m.Register(testDriver("d1"))

	err := m.WithDriver("d1", func(d *fleet.Driver) error {
		d.ActiveOrderIDs = append(d.ActiveOrderIDs, "o1")
		return nil
	})
	require.NoError(t, err)

	snap, err := m.Snapshot("d1")
	require.NoError(t, err)
	require.Equal(t, []string{"o1"}, snap.ActiveOrderIDs)
}
