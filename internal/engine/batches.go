package engine

import (
	"sync"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// BatchTable is the in-process batch store (§3/§4.3).
type BatchTable struct {
	actors *KeyedMutex

	mu      sync.RWMutex
	batches map[string]*fleet.Batch
}

func NewBatchTable() *BatchTable {
	return &BatchTable{
		actors:  NewKeyedMutex(),
		batches: make(map[string]*fleet.Batch),
	}
}

func (t *BatchTable) Put(b *fleet.Batch) {
	t.actors.With(b.ID, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.batches[b.ID] = b.Clone()
	})
}

func (t *BatchTable) Get(id string) (*fleet.Batch, error) {
	t.mu.RLock()
	b, ok := t.batches[id]
	t.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Kind: "batch", ID: id}
	}
	return b.Clone(), nil
}

func (t *BatchTable) All() []*fleet.Batch {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*fleet.Batch, 0, len(t.batches))
	for _, b := range t.batches {
		out = append(out, b.Clone())
	}
	return out
}

// Update mutates a batch in place under its actor lock.
func (t *BatchTable) Update(id string, fn func(b *fleet.Batch) error) (*fleet.Batch, error) {
	var result *fleet.Batch
	var opErr error

	t.actors.With(id, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		b, ok := t.batches[id]
		if !ok {
			opErr = &NotFoundError{Kind: "batch", ID: id}
			return
		}
		var working = b.Clone()
		if err := fn(working); err != nil {
			opErr = err
			return
		}
		t.batches[id] = working
		result = working.Clone()
	})

	return result, opErr
}
