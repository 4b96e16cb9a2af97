package engine

import (
	"fmt"
	"sync"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// ConflictError reports an optimistic CAS miss on an order's status — the
// §5/§7 "Conflict" error kind. Callers retry with fresh state; the caller
// owns the retry budget.
type ConflictError struct {
	OrderID       string
	ExpectedOneOf []fleet.OrderStatus
	ActualStatus  fleet.OrderStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("engine: CAS conflict on order %s: expected one of %v, was %s", e.OrderID, e.ExpectedOneOf, e.ActualStatus)
}

// NotFoundError reports a lookup miss by entity id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("engine: %s not found: %s", e.Kind, e.ID)
}

// OrderTable is the in-process order store (§1: the relational layer for
// this entity is out of scope; only its semantic invariants are
// specified). Mutation is only ever through the owning engine for the
// order's current status (§5: "Dispatch until assigned, then the driver's
// route/escalation pipeline"), enforced here by CAS on status rather than
// by tracking "ownership" as a separate field.
type OrderTable struct {
	actors *KeyedMutex

	mu     sync.RWMutex
	orders map[string]*fleet.Order
}

func NewOrderTable() *OrderTable {
	return &OrderTable{
		actors: NewKeyedMutex(),
		orders: make(map[string]*fleet.Order),
	}
}

// Put inserts or overwrites an order unconditionally — used for initial
// ingestion (order.created) where there is no prior state to race with.
func (t *OrderTable) Put(o *fleet.Order) {
	t.actors.With(o.ID, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.orders[o.ID] = o.Clone()
	})
}

// Get returns a snapshot of the order, safe to read without holding a lock.
func (t *OrderTable) Get(id string) (*fleet.Order, error) {
	t.mu.RLock()
	o, ok := t.orders[id]
	t.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Kind: "order", ID: id}
	}
	return o.Clone(), nil
}

// All returns a snapshot of every order.
func (t *OrderTable) All() []*fleet.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*fleet.Order, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o.Clone())
	}
	return out
}

// CompareAndUpdate implements the §5 optimistic check-and-set: "the first
// successful write that sets driver_id wins; any concurrent assignment
// attempt must observe and abort... implemented by an optimistic
// check-and-set on (order.id, expected_status=pending|pending_driver)".
//
// fn receives the current order (already passing the expected-status
// check) and mutates it in place; its return value becomes the new stored
// state. Returns ConflictError if the order's current status is not one of
// expected.
func (t *OrderTable) CompareAndUpdate(orderID string, expected []fleet.OrderStatus, fn func(o *fleet.Order) error) (*fleet.Order, error) {
	var result *fleet.Order
	var opErr error

	t.actors.With(orderID, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		o, ok := t.orders[orderID]
		if !ok {
			opErr = &NotFoundError{Kind: "order", ID: orderID}
			return
		}

		if !statusIn(o.Status, expected) {
			opErr = &ConflictError{OrderID: orderID, ExpectedOneOf: expected, ActualStatus: o.Status}
			return
		}

		var working = o.Clone()
		if err := fn(working); err != nil {
			opErr = err
			return
		}

		t.orders[orderID] = working
		result = working.Clone()
	})

	return result, opErr
}

func statusIn(s fleet.OrderStatus, set []fleet.OrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
