package redis

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/pkg/retry"
)

// SnapshotStore implements shared.SnapshotStore with one JSON value per collection.
type SnapshotStore struct {
	cache   *Cache
	ttl     time.Duration
	retrier *retry.Retrier
}

// NewSnapshotStore creates a store over cache. ttl of zero keeps keys forever.
func NewSnapshotStore(cache *Cache, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{
		cache:   cache,
		ttl:     ttl,
		retrier: retry.CacheRetrier(IsTransient),
	}
}

// Load decodes the collection under key into dest.
func (s *SnapshotStore) Load(ctx context.Context, key string, dest any) (bool, error) {
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.cache.Get(ctx, SnapshotKey(key), dest)
	})
	switch {
	case errors.Is(err, ErrCacheMiss):
		return false, nil
	case errors.Is(err, ErrCacheSerialization):
		return true, pkgerrors.Wrapf(err, "redis: decode snapshot %q", key)
	case err != nil:
		return false, pkgerrors.Wrapf(err, "redis: load snapshot %q", key)
	}
	return true, nil
}

// Save replaces the collection under key.
func (s *SnapshotStore) Save(ctx context.Context, key string, value any) error {
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, SnapshotKey(key), value, s.ttl)
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "redis: save snapshot %q", key)
	}
	return nil
}

// IsTransient reports network-level failures worth one more attempt.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrCacheSerialization) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

var _ shared.SnapshotStore = (*SnapshotStore)(nil)
