package persistence

import (
	"context"
	"errors"
	"log/slog"

	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/pkg/circuitbreaker"
)

// GuardedStore fails fast with shared.ErrServiceUnavailable while the
// underlying store keeps failing.
type GuardedStore struct {
	next    shared.SnapshotStore
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedStore wraps next with a storage circuit breaker.
func NewGuardedStore(name string, next shared.SnapshotStore, log *slog.Logger) *GuardedStore {
	return NewGuardedStoreWithBreaker(next, circuitbreaker.Storage(name, func(name string, from, to circuitbreaker.State) {
		log.Warn("storage circuit changed state", "store", name, "from", from.String(), "to", to.String())
	}))
}

// NewGuardedStoreWithBreaker wraps next with a preconfigured breaker.
func NewGuardedStoreWithBreaker(next shared.SnapshotStore, breaker *circuitbreaker.CircuitBreaker) *GuardedStore {
	return &GuardedStore{next: next, breaker: breaker}
}

// Load implements shared.SnapshotStore.
func (g *GuardedStore) Load(ctx context.Context, key string, dest any) (bool, error) {
	var found bool
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		found, err = g.next.Load(ctx, key, dest)
		return err
	})
	return found, g.translate("Load", key, err)
}

// Save implements shared.SnapshotStore.
func (g *GuardedStore) Save(ctx context.Context, key string, value any) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Save(ctx, key, value)
	})
	return g.translate("Save", key, err)
}

// State exposes the breaker state for health reporting.
func (g *GuardedStore) State() circuitbreaker.State {
	return g.breaker.State()
}

// Ping fails while the circuit is open.
func (g *GuardedStore) Ping(context.Context) error {
	if g.breaker.State() == circuitbreaker.StateOpen {
		return circuitbreaker.ErrCircuitOpen
	}
	return nil
}

func (g *GuardedStore) translate(op, key string, err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.WrapError("storage", op, shared.ErrServiceUnavailable, "storage unavailable: "+key, err)
	}
	return err
}
