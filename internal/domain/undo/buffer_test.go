package undo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

type recorder struct {
	applied []string
	err     error
}

func (r *recorder) restore(_ context.Context, payload string) error {
	if r.err != nil {
		return r.err
	}
	r.applied = append(r.applied, payload)
	return nil
}

func newTestBuffer(t *testing.T) (*Buffer[string], *recorder, *shared.ManualClock) {
	t.Helper()
	clock := shared.NewManualClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	rec := &recorder{}
	b := NewBuffer[string](clock, rec.restore)
	t.Cleanup(b.Close)
	return b, rec, clock
}

func TestBuffer_UndoWithinWindow(t *testing.T) {
	b, rec, clock := newTestBuffer(t)
	ctx := context.Background()

	b.Set(Entry[string]{Payload: "before", ExpiresInSeconds: 5, Label: "Предмет удалён"})
	clock.Advance(3 * time.Second)

	taken, ok, err := b.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Предмет удалён", taken.Label)
	assert.Equal(t, []string{"before"}, rec.applied)

	// слот очищен сразу
	_, ok, err = b.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, rec.applied, 1)
}

func TestBuffer_ExpiredUndoIsNoop(t *testing.T) {
	b, rec, clock := newTestBuffer(t)

	b.Set(Entry[string]{Payload: "before", ExpiresInSeconds: 5})
	clock.Advance(5 * time.Second)

	_, pending := b.Pending()
	assert.False(t, pending)

	_, ok, err := b.Undo(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rec.applied)
}

func TestBuffer_DeadlineCheckedOnAccess(t *testing.T) {
	b, rec, clock := newTestBuffer(t)

	b.Set(Entry[string]{Payload: "before", ExpiresInSeconds: 5})
	// время ушло вперёд, а таймер ещё не сработал
	clock.Set(clock.Now().Add(10 * time.Second))

	assert.Equal(t, 0, b.Remaining())
	_, ok, err := b.Undo(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rec.applied)
}

func TestBuffer_SetOverwritesAndRestartsCountdown(t *testing.T) {
	b, rec, clock := newTestBuffer(t)

	b.Set(Entry[string]{Payload: "first", ExpiresInSeconds: 5})
	clock.Advance(4 * time.Second)
	b.Set(Entry[string]{Payload: "second", ExpiresInSeconds: 5, Label: "второе"})
	clock.Advance(4 * time.Second)

	e, ok := b.Pending()
	require.True(t, ok)
	assert.Equal(t, "second", e.Payload)
	assert.Equal(t, "второе", e.Label)
	assert.Equal(t, 1, e.ExpiresInSeconds)

	taken, ok, err := b.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "второе", taken.Label)
	assert.Equal(t, []string{"second"}, rec.applied)
}

func TestBuffer_RemainingRoundsUp(t *testing.T) {
	b, _, clock := newTestBuffer(t)

	assert.Equal(t, 0, b.Remaining())

	b.Set(Entry[string]{Payload: "x", ExpiresInSeconds: 5})
	assert.Equal(t, 5, b.Remaining())

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 4, b.Remaining())

	clock.Advance(3400 * time.Millisecond)
	assert.Equal(t, 1, b.Remaining())
}

func TestBuffer_DefaultExpiry(t *testing.T) {
	b, _, _ := newTestBuffer(t)

	b.Set(Entry[string]{Payload: "x"})
	assert.Equal(t, DefaultExpiry, b.Remaining())
}

func TestBuffer_ExpireHook(t *testing.T) {
	clock := shared.NewManualClock(time.Unix(0, 0))
	var expired []string
	b := NewBuffer[string](clock, func(context.Context, string) error { return nil },
		WithExpireHook(func(e Entry[string]) { expired = append(expired, e.Payload) }))
	defer b.Close()

	b.Set(Entry[string]{Payload: "first", ExpiresInSeconds: 2})
	b.Set(Entry[string]{Payload: "second", ExpiresInSeconds: 2})
	clock.Advance(3 * time.Second)

	assert.Equal(t, []string{"second"}, expired)
}

func TestBuffer_RestoreErrorClearsSlot(t *testing.T) {
	b, rec, _ := newTestBuffer(t)
	rec.err = errors.New("store down")

	b.Set(Entry[string]{Payload: "x", ExpiresInSeconds: 5})
	_, ok, err := b.Undo(context.Background())
	assert.False(t, ok)
	assert.EqualError(t, err, "store down")

	_, pending := b.Pending()
	assert.False(t, pending)
}

func TestBuffer_UndoReturnsTakenEntryDespiteNewSet(t *testing.T) {
	clock := shared.NewManualClock(time.Unix(0, 0))
	var b *Buffer[string]
	var applied []string
	b = NewBuffer[string](clock, func(_ context.Context, payload string) error {
		// следующее действие успело записаться, пока шло восстановление
		b.Set(Entry[string]{Payload: "newer", ExpiresInSeconds: 5, Label: "новое"})
		applied = append(applied, payload)
		return nil
	})
	defer b.Close()

	b.Set(Entry[string]{Payload: "older", ExpiresInSeconds: 5, Label: "старое"})
	taken, ok, err := b.Undo(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "старое", taken.Label)
	assert.Equal(t, "older", taken.Payload)
	assert.Equal(t, []string{"older"}, applied)

	e, pending := b.Pending()
	require.True(t, pending)
	assert.Equal(t, "новое", e.Label)
}

func TestBuffer_CloseCancelsAndRejects(t *testing.T) {
	b, rec, clock := newTestBuffer(t)

	b.Set(Entry[string]{Payload: "x", ExpiresInSeconds: 5})
	b.Close()
	b.Set(Entry[string]{Payload: "y", ExpiresInSeconds: 5})
	clock.Advance(time.Second)

	_, ok, err := b.Undo(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rec.applied)
}

func TestBuffer_RealClock(t *testing.T) {
	b := NewBuffer[int](shared.NewSystemClock(nil), func(context.Context, int) error { return nil })
	defer b.Close()

	b.Set(Entry[int]{Payload: 1, ExpiresInSeconds: 1})
	assert.Eventually(t, func() bool {
		_, ok := b.Pending()
		return !ok
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRegistry(t *testing.T) {
	clock := shared.NewManualClock(time.Unix(0, 0))
	reg := NewRegistry(func() *Buffer[string] {
		return NewBuffer[string](clock, func(context.Context, string) error { return nil })
	})
	defer reg.Close()

	a := reg.For("session-a")
	assert.Same(t, a, reg.For("session-a"))
	assert.NotSame(t, a, reg.For("session-b"))
	assert.Equal(t, 2, reg.Len())

	a.Set(Entry[string]{Payload: "x", ExpiresInSeconds: 5})
	reg.Drop("session-a")
	assert.Equal(t, 1, reg.Len())
	_, ok := a.Pending()
	assert.False(t, ok)
}
