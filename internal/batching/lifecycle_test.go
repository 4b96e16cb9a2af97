package batching

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/events"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

type fakeOrderStore struct {
	orders map[string]*fleet.Order
}

func newFakeOrderStore(orders ...*fleet.Order) *fakeOrderStore {
	var f = &fakeOrderStore{orders: make(map[string]*fleet.Order)}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrderStore) All() []*fleet.Order {
	var out []*fleet.Order
	for _, o := range f.orders {
		out = append(out, o.Clone())
	}
	return out
}

func (f *fakeOrderStore) Get(id string) (*fleet.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s not found", id)
	}
	return o.Clone(), nil
}

func (f *fakeOrderStore) CompareAndUpdate(orderID string, expected []fleet.OrderStatus, fn func(o *fleet.Order) error) (*fleet.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	var matches = false
	for _, s := range expected {
		if o.Status == s {
			matches = true
		}
	}
	if !matches {
		return nil, fmt.Errorf("order %s: CAS conflict, status is %s", orderID, o.Status)
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	return o.Clone(), nil
}

type fakeBatchStore struct {
	batches map[string]*fleet.Batch
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{batches: make(map[string]*fleet.Batch)}
}

func (f *fakeBatchStore) Put(b *fleet.Batch) { f.batches[b.ID] = b.Clone() }

func (f *fakeBatchStore) Get(id string) (*fleet.Batch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	return b.Clone(), nil
}

func (f *fakeBatchStore) All() []*fleet.Batch {
	var out []*fleet.Batch
	for _, b := range f.batches {
		out = append(out, b.Clone())
	}
	return out
}

func (f *fakeBatchStore) Update(id string, fn func(b *fleet.Batch) error) (*fleet.Batch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	f.batches[id] = b
	return b.Clone(), nil
}

func TestEngine_Tick_ClustersCompatibleOrdersIntoPendingBatch(t *testing.T) {
	var now = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var clock = fleet.NewFixedClock(now)

	var a = &fleet.Order{
		ID: "a", ServiceType: fleet.ServiceTypeBarq, LoadKg: 1, Status: fleet.OrderPending,
		Pickup: fleet.GeoPoint{Lat: 24.70, Lng: 46.67}, Dropoff: fleet.GeoPoint{Lat: 24.72, Lng: 46.69},
		SLADeadline: now.Add(2 * time.Hour),
	}
	var b = &fleet.Order{
		ID: "b", ServiceType: fleet.ServiceTypeBarq, LoadKg: 1, Status: fleet.OrderPendingDriver,
		Pickup: fleet.GeoPoint{Lat: 24.705, Lng: 46.675}, Dropoff: fleet.GeoPoint{Lat: 24.725, Lng: 46.695},
		SLADeadline: now.Add(3 * time.Hour),
	}
	var alreadyBatched = &fleet.Order{
		ID: "c", ServiceType: fleet.ServiceTypeBarq, LoadKg: 1, Status: fleet.OrderPending, BatchID: "other",
		Pickup: fleet.GeoPoint{Lat: 24.701, Lng: 46.671}, Dropoff: fleet.GeoPoint{Lat: 24.721, Lng: 46.691},
		SLADeadline: now.Add(2 * time.Hour),
	}

	var orders = newFakeOrderStore(a, b, alreadyBatched)
	var batches = newFakeBatchStore()
	var bus = events.NewBus()
	var created = bus.BatchCreated.Subscribe(4)

	var engine = New(orders, batches, bus, clock, testCfg())
	engine.Tick()

	require.Len(t, batches.All(), 1)
	var batch = batches.All()[0]
	require.Equal(t, fleet.BatchPending, batch.Status)
	require.ElementsMatch(t, []string{"a", "b"}, batch.OrderIDs)

	var updatedA, _ = orders.Get("a")
	var updatedB, _ = orders.Get("b")
	require.Equal(t, batch.ID, updatedA.BatchID)
	require.Equal(t, batch.ID, updatedB.BatchID)

	select {
	case ev := <-created:
		require.Equal(t, batch.ID, ev.BatchID)
	default:
		t.Fatal("expected a BatchCreated event")
	}
}

func TestEngine_OnOrderCancelled_DegradesBatchAtSizeOne(t *testing.T) {
	var now = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	var a = &fleet.Order{ID: "a", Status: fleet.OrderAssigned}
	var b = &fleet.Order{ID: "b", Status: fleet.OrderCancelled}

	var orders = newFakeOrderStore(a, b)
	var batches = newFakeBatchStore()
	var bus = events.NewBus()
	var alerts = bus.DispatchAlert.Subscribe(4)

	batches.Put(&fleet.Batch{ID: "batch-1", OrderIDs: []string{"a", "b"}, Status: fleet.BatchInProgress})

	var engine = New(orders, batches, bus, fleet.NewFixedClock(now), testCfg())
	require.NoError(t, engine.OnOrderCancelled("batch-1", "b", now))

	var updated, err = batches.Get("batch-1")
	require.NoError(t, err)
	require.Equal(t, fleet.BatchCancelled, updated.Status)
	require.Equal(t, []string{"a"}, updated.OrderIDs)

	select {
	case alert := <-alerts:
		require.Equal(t, "BATCH_DEGRADED", alert.Type)
		require.Equal(t, "a", alert.OrderID)
	default:
		t.Fatal("expected a BATCH_DEGRADED DispatchAlert")
	}
}

func TestEngine_OnOrderDelivered_CompletesBatchWhenAllTerminal(t *testing.T) {
	var now = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	var a = &fleet.Order{ID: "a", Status: fleet.OrderDelivered}
	var b = &fleet.Order{ID: "b", Status: fleet.OrderDelivered}

	var orders = newFakeOrderStore(a, b)
	var batches = newFakeBatchStore()
	var bus = events.NewBus()
	var completed = bus.BatchCompleted.Subscribe(4)

	batches.Put(&fleet.Batch{ID: "batch-1", OrderIDs: []string{"a", "b"}, Status: fleet.BatchInProgress})

	var engine = New(orders, batches, bus, fleet.NewFixedClock(now), testCfg())
	require.NoError(t, engine.OnOrderDelivered("batch-1", now))

	var updated, err = batches.Get("batch-1")
	require.NoError(t, err)
	require.Equal(t, fleet.BatchCompleted, updated.Status)

	select {
	case ev := <-completed:
		require.Equal(t, "batch-1", ev.BatchID)
	default:
		t.Fatal("expected a BatchCompleted event")
	}
}
