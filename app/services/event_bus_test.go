package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.Publish(Event{Kind: EventStatusChanged, TenantID: "tenant-1", CustomerID: "c1", Detail: "sent"})

	select {
	case event := <-ch:
		assert.Equal(t, EventStatusChanged, event.Kind)
		assert.Equal(t, "c1", event.CustomerID)
		assert.False(t, event.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEventBusPublishNeverBlocks(t *testing.T) {
	bus := NewEventBus()
	_, cancel := bus.Subscribe(1)
	defer cancel()

	// The single-slot subscriber never reads; the publisher must not stall.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Kind: EventFeedbackArrived, TenantID: "tenant-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	ch, cancel := bus.Subscribe(4)
	cancel()

	bus.Publish(Event{Kind: EventSendDenied, TenantID: "tenant-1"})

	_, open := <-ch
	require.False(t, open, "unsubscribed channel should be closed")
}
