package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-sync/internal/dashboard"
	"github.com/couchcryptid/quake-sync/internal/observability"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestHub_PulsesDoNotCrowdOutStateEvents(t *testing.T) {
	hub := newTestHub()
	c := &client{send: make(chan []byte, 2), pulses: make(chan []byte, 1)}
	require.True(t, hub.register(c))

	for range 10 {
		hub.Broadcast(dashboard.Event{Type: dashboard.EventPulse, Data: "us1"})
	}
	hub.Broadcast(dashboard.Event{Type: dashboard.EventThreshold, Data: 4.0})

	assert.Equal(t, 1, hub.Clients())
	assert.Len(t, c.pulses, 1)
	require.Len(t, c.send, 1)

	var evt dashboard.Event
	require.NoError(t, json.Unmarshal(<-c.send, &evt))
	assert.Equal(t, dashboard.EventThreshold, evt.Type)
}

func TestHub_DisconnectsClientThatFallsBehind(t *testing.T) {
	hub := newTestHub()
	slow := &client{send: make(chan []byte, 1), pulses: make(chan []byte, 1)}
	fast := &client{send: make(chan []byte, 4), pulses: make(chan []byte, 1)}
	require.True(t, hub.register(slow))
	require.True(t, hub.register(fast))

	hub.Broadcast(dashboard.Event{Type: dashboard.EventSnapshot})
	hub.Broadcast(dashboard.Event{Type: dashboard.EventCenterOn})

	assert.Equal(t, 1, hub.Clients())
	assert.Len(t, fast.send, 2)

	<-slow.send
	_, open := <-slow.send
	assert.False(t, open, "slow client's send channel should be closed")

	// A later unregister from the read pump must not close it twice.
	assert.NotPanics(t, func() { hub.unregister(slow) })
}
