package batching

import (
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// OrderStore is the subset of engine.OrderTable this package needs.
type OrderStore interface {
	All() []*fleet.Order
	Get(id string) (*fleet.Order, error)
	CompareAndUpdate(orderID string, expected []fleet.OrderStatus, fn func(o *fleet.Order) error) (*fleet.Order, error)
}

// BatchStore is the subset of engine.BatchTable this package needs.
type BatchStore interface {
	Put(b *fleet.Batch)
	Get(id string) (*fleet.Batch, error)
	All() []*fleet.Batch
	Update(id string, fn func(b *fleet.Batch) error) (*fleet.Batch, error)
}
