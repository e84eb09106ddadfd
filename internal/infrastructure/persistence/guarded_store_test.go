package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/infrastructure/persistence/memory"
	"github.com/center-hub/center-hub/pkg/circuitbreaker"
)

type flakyStore struct {
	shared.SnapshotStore
	err   error
	calls int
}

func (f *flakyStore) Load(ctx context.Context, key string, dest any) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.SnapshotStore.Load(ctx, key, dest)
}

func TestGuardedStore_PassesThrough(t *testing.T) {
	ctx := context.Background()
	g := NewGuardedStoreWithBreaker(memory.NewStore(), circuitbreaker.New("test"))

	require.NoError(t, g.Save(ctx, shared.KeyCourses, []string{"Математика"}))
	var got []string
	found, err := g.Load(ctx, shared.KeyCourses, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"Математика"}, got)
	assert.NoError(t, g.Ping(ctx))
}

func TestGuardedStore_OpensAndFailsFast(t *testing.T) {
	ctx := context.Background()
	down := errors.New("dial tcp: connection refused")
	flaky := &flakyStore{SnapshotStore: memory.NewStore(), err: down}
	g := NewGuardedStoreWithBreaker(flaky, circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2)))

	var v []string
	for i := 0; i < 2; i++ {
		_, err := g.Load(ctx, shared.KeyStudents, &v)
		assert.ErrorIs(t, err, down)
	}
	assert.Equal(t, circuitbreaker.StateOpen, g.State())

	_, err := g.Load(ctx, shared.KeyStudents, &v)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.True(t, shared.IsRetryable(err))
	assert.Equal(t, 2, flaky.calls, "open circuit does not reach the store")
	assert.Error(t, g.Ping(ctx))
}
