package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/eventbus"
	"github.com/flowdeck/flowdeck/pkg/events"
)

func newTestBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	channel := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(channel, channel)

	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.WorkflowSavedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.WorkflowSaved{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.WorkflowSavedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: 7,
		},
		Name:    "demo",
		Version: 3,
		Created: true,
	}

	require.NoError(t, bus.Publish(ctx, "7", sent))

	select {
	case raw := <-received:
		event, ok := raw.(*events.WorkflowSaved)
		require.True(t, ok)
		assert.Equal(t, int64(7), event.WorkflowID)
		assert.Equal(t, "demo", event.Name)
		assert.Equal(t, int64(3), event.Version)
		assert.True(t, event.Created)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnhandledEventTypesAreDropped(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.WorkflowDeletedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	saved := events.WorkflowSaved{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.WorkflowSavedEvent, WorkflowID: 1},
	}
	require.NoError(t, bus.Publish(ctx, "1", saved))

	deleted := events.WorkflowDeleted{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.WorkflowDeletedEvent, WorkflowID: 2},
	}
	require.NoError(t, bus.Publish(ctx, "2", deleted))

	select {
	case raw := <-received:
		event, ok := raw.(*events.WorkflowDeleted)
		require.True(t, ok)
		assert.Equal(t, int64(2), event.WorkflowID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_DuplicateHandlerRejected(t *testing.T) {
	bus := newTestBus(t)

	handler := func(_ context.Context, _ any) error { return nil }

	require.NoError(t, bus.Handle(events.WorkflowSavedEvent, handler))
	assert.Error(t, bus.Handle(events.WorkflowSavedEvent, handler))
}
