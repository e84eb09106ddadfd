package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_OptionsFromHostPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "cache.local"
	cfg.DB = 2

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.local:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)
}

func TestConfig_OptionsFromURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://:secret@10.0.0.5:6380/3"

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)
}

func TestConfig_OptionsBadURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "http://nope"
	_, err := cfg.Options()
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "snapshot:students", SnapshotKey("students"))
	assert.Equal(t, "lock:fees", LockKey("fees"))
}

func TestCache_RejectsBadArguments(t *testing.T) {
	c := &Cache{}
	ctx := context.Background()
	assert.ErrorIs(t, c.Set(ctx, "", 1, 0), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Get(ctx, "", nil), ErrCacheKeyEmpty)

	_, ok, err := c.TryLock(ctx, "", "t", 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(io.EOF))
	assert.True(t, IsTransient(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.False(t, IsTransient(ErrCacheMiss))
	assert.False(t, IsTransient(fmt.Errorf("%w: bad json", ErrCacheSerialization)))
	assert.False(t, IsTransient(nil))
}
