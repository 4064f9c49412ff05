package messaging

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

func testEvent(t shared.EventType) shared.Event {
	return shared.SessionCompletedEvent{
		BaseEvent: shared.NewBaseEvent(t, "u1", time.Now()),
		Minutes:   5,
	}
}

func TestInMemoryEventBusSyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventSessionCompleted, func(shared.Event) error {
		typed++
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		all++
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(testEvent(shared.EventSessionCompleted)))
	require.NoError(t, bus.Publish(testEvent(shared.EventStudyStarted)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBusRecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})

	var after bool
	require.NoError(t, bus.Subscribe(shared.EventFocusTimerCompleted, func(shared.Event) error {
		panic("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventFocusTimerCompleted, func(shared.Event) error {
		after = true
		return nil
	}))

	assert.NotPanics(t, func() {
		_ = bus.Publish(testEvent(shared.EventFocusTimerCompleted))
	})
	assert.True(t, after)
}

func TestInMemoryEventBusAsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var handled atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(testEvent(shared.EventStudyEnded)))
	}
	require.NoError(t, bus.Close())
	assert.Equal(t, int32(10), handled.Load())

	assert.ErrorIs(t, bus.Publish(testEvent(shared.EventStudyEnded)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventStudyEnded, func(shared.Event) error { return nil }), ErrEventBusClosed)
}
