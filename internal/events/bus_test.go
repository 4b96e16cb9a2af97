package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/events"
)

func TestBus_PublishSubscribe(t *testing.T) {
	var bus = events.NewBus()
	var ch = bus.OrderAssigned.Subscribe(4)

	bus.OrderAssigned.Publish(events.OrderAssigned{
		OrderID:  "o1",
		DriverID: "d1",
		Score:    0.9,
		At:       time.Now(),
	})

	select {
	case got := <-ch:
		require.Equal(t, "o1", got.OrderID)
		require.Equal(t, "d1", got.DriverID)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestTopic_DropsWhenSubscriberFull(t *testing.T) {
	var bus = events.NewBus()
	var ch = bus.BatchCreated.Subscribe(1)

	bus.BatchCreated.Publish(events.BatchCreated{BatchID: "b1"})
	bus.BatchCreated.Publish(events.BatchCreated{BatchID: "b2"}) // dropped, channel full

	got := <-ch
	require.Equal(t, "b1", got.BatchID)

	select {
	case <-ch:
		t.Fatal("expected no second event; publisher must not block")
	default:
	}
}
