package fleet

import "time"

// DriverState is one of the five states of the driver state machine (§4.1).
type DriverState string

const (
	DriverOffline   DriverState = "OFFLINE"
	DriverAvailable DriverState = "AVAILABLE"
	DriverBusy      DriverState = "BUSY"
	DriverReturning DriverState = "RETURNING"
	DriverOnBreak   DriverState = "ON_BREAK"
)

// VehicleType constrains which service tiers a driver may serve and its
// base capacity.
type VehicleType string

const (
	VehicleBike  VehicleType = "BIKE"
	VehicleCar   VehicleType = "CAR"
	VehicleVan   VehicleType = "VAN"
	VehicleTruck VehicleType = "TRUCK"
)

// Driver is a fleet member with a state machine, capacity, and a live
// location.
type Driver struct {
	ID              string
	CurrentLocation GeoPoint
	VehicleType     VehicleType
	CapacityKg      float64
	ServiceTypes    []ServiceType

	Status         DriverState
	PreviousStatus DriverState
	StateChangedAt time.Time

	ActiveOrderIDs []string // ordered set; route stop order follows this

	TargetDeliveries      int
	CompletedToday        int
	HoursWorkedToday      float64
	MaxWorkingHours       float64
	ConsecutiveDeliveries int
	MaxConsecutive        int
	OnTimeRate            float64
	LastBreakAt           *time.Time
	LastLocationAt        time.Time

	MaxConcurrentOrders int
}

// CurrentLoadKg sums the load of a driver's active orders. The caller
// supplies the order lookup since Driver does not own Order references
// (§3: "Routes and Batches hold weak references to orders... never
// ownership").
func (d *Driver) CurrentLoadKg(loadOf func(orderID string) float64) float64 {
	var total float64
	for _, id := range d.ActiveOrderIDs {
		total += loadOf(id)
	}
	return total
}

// ServesType reports whether the driver accepts a given service type.
func (d *Driver) ServesType(t ServiceType) bool {
	for _, st := range d.ServiceTypes {
		if st == t {
			return true
		}
	}
	return false
}

// CanAccept implements the §3 derived predicate:
//
//	can_accept ⇒ status=AVAILABLE ∧ hours_worked_today < max_working_hours
//	             ∧ consecutive_deliveries < max_consecutive ∧ on_time_rate ≥ 0.9
const MinOnTimeRateToAccept = 0.9

func (d *Driver) CanAccept() bool {
	return d.Status == DriverAvailable &&
		d.HoursWorkedToday < d.MaxWorkingHours &&
		d.ConsecutiveDeliveries < d.MaxConsecutive &&
		d.OnTimeRate >= MinOnTimeRateToAccept
}

// RemainingCapacityKg returns how much load capacity is left for new work.
func (d *Driver) RemainingCapacityKg(loadOf func(orderID string) float64) float64 {
	return d.CapacityKg - d.CurrentLoadKg(loadOf)
}

// Clone returns a deep-enough copy for snapshotting.
func (d *Driver) Clone() *Driver {
	var c = *d
	c.ServiceTypes = append([]ServiceType(nil), d.ServiceTypes...)
	c.ActiveOrderIDs = append([]string(nil), d.ActiveOrderIDs...)
	if d.LastBreakAt != nil {
		var t = *d.LastBreakAt
		c.LastBreakAt = &t
	}
	return &c
}
