package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTripsThroughJSON(t *testing.T) {
	ev := New(TypeChange, map[string]string{"key": "a.ts"}, 1234)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, ev.Type, decoded.Type)
	assert.Equal(t, ev.Timestamp, decoded.Timestamp)
	assert.JSONEq(t, string(ev.Payload), string(decoded.Payload))
}

func TestBusPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(4)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(New(TypeLink, nil, 1))

	select {
	case got := <-ch:
		assert.Equal(t, TypeLink, got.Type)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestBusPublishNeverBlocksWhenSubscriberFull(t *testing.T) {
	bus := NewBus(1)
	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(New(TypeChange, nil, int64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full, unread subscriber channel")
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(4)
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	assert.Equal(t, 0, bus.SubscriberCount())
	_, open := <-ch
	assert.False(t, open)
}
