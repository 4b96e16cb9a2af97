package fleet

import "time"

// BatchStatus is the monotonic lifecycle of an order batch (§3, §4.3).
type BatchStatus string

const (
	BatchPending    BatchStatus = "PENDING"
	BatchAssigned   BatchStatus = "ASSIGNED"
	BatchInProgress BatchStatus = "IN_PROGRESS"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchCancelled  BatchStatus = "CANCELLED"
)

// Batch is a set of orders grouped to be served by one driver in one route.
type Batch struct {
	ID          string
	DriverID    string // empty until ASSIGNED
	OrderIDs    []string
	ServiceType ServiceType
	Status      BatchStatus
	CreatedAt   time.Time
}

// Clone returns a deep-enough copy.
func (b *Batch) Clone() *Batch {
	var c = *b
	c.OrderIDs = append([]string(nil), b.OrderIDs...)
	return &c
}
