package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishFanOut(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(1)
	b := bus.Subscribe(1)
	defer a.Close()
	defer b.Close()

	bus.Publish(Event{Type: TypeTick, Payload: 1})

	evA := <-a.C
	evB := <-b.C
	assert.Equal(t, TypeTick, evA.Type)
	assert.Equal(t, TypeTick, evB.Type)
	assert.False(t, evA.Timestamp.IsZero(), "timestamp should be stamped on publish")
}

func TestBus_FullSubscriberDrops(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)
	defer sub.Close()

	bus.Publish(Event{Type: TypeTick, Payload: 1})
	bus.Publish(Event{Type: TypeTick, Payload: 2})

	ev := <-sub.C
	assert.Equal(t, 1, ev.Payload)
	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}

func TestSubscription_CloseIdempotent(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)
	require.Equal(t, 1, bus.Subscribers())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, bus.Subscribers())
	_, open := <-sub.C
	assert.False(t, open)

	// Publishing after close must not panic
	bus.Publish(Event{Type: TypeAlert})
}

func TestBus_TypeFilteredSubscriberKeepsAlerts(t *testing.T) {
	bus := NewBus()
	alerts := bus.Subscribe(1, TypeAlert)
	defer alerts.Close()

	for i := 0; i < 100; i++ {
		bus.Publish(Event{Type: TypeTick, Payload: i})
	}
	bus.Publish(Event{Type: TypeAlert, Payload: "burst"})

	ev := <-alerts.C
	assert.Equal(t, TypeAlert, ev.Type)
	assert.Equal(t, "burst", ev.Payload)
	select {
	case extra := <-alerts.C:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}
