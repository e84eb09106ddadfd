package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/infrastructure/persistence/memory"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
}

func TestInMemoryEventBus_DeliversByType(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventNotification, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(shared.NewNotificationEvent("ok", shared.SeverityInfo)))
	require.NoError(t, bus.Publish(shared.NewActionLoggedEvent("a", "d", "s1")))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().Published)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("oops") }))

	assert.NoError(t, bus.Publish(shared.NewNotificationEvent("x", shared.SeverityError)))
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().Failed)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var mu sync.Mutex
	seen := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewNotificationEvent("x", shared.SeverityInfo)))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, 5, seen)
	assert.ErrorIs(t, bus.Publish(shared.NewNotificationEvent("late", shared.SeverityInfo)), ErrEventBusClosed)
}

func TestSideChannel_AuditTrail(t *testing.T) {
	bus := syncBus()
	defer bus.Close()
	log := memory.NewActionLog()
	require.NoError(t, RegisterAuditTrail(bus, log, time.Second))
	require.NoError(t, RegisterNotificationLog(bus, nil))

	ch := NewSideChannel(bus, nil)
	ctx := WithCorrelationID(context.Background(), "req-1")
	ch.LogAction(ctx, "Удаление предмета", "Физика", "st-1")
	ch.Notify(ctx, "Предмет удалён", shared.SeveritySuccess)

	recs, err := log.Recent(context.Background(), "st-1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Удаление предмета", recs[0].Action)
	assert.Equal(t, "Физика", recs[0].Details)
	assert.False(t, recs[0].CreatedAt.IsZero())
}

func TestSideChannel_ClosedBusDoesNotPanic(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	ch := NewSideChannel(bus, nil)
	assert.NotPanics(t, func() {
		ch.Notify(context.Background(), "x", shared.SeverityInfo)
		ch.LogAction(context.Background(), "a", "d", "")
	})
}
