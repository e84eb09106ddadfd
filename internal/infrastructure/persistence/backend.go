// Package persistence opens the configured snapshot storage.
package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/center-hub/center-hub/config"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/infrastructure/persistence/memory"
	"github.com/center-hub/center-hub/internal/infrastructure/persistence/postgres"
	"github.com/center-hub/center-hub/internal/infrastructure/persistence/redis"
)

// Backend bundles the stores of one storage backend.
type Backend struct {
	Name      string
	Store     shared.SnapshotStore
	ActionLog shared.ActionLogRepository

	// Cache is set when Redis is reachable, whatever the backend. Jobs use it
	// as a cluster lock.
	Cache *redis.Cache

	// Checks are connectivity probes for /health.
	Checks map[string]func(ctx context.Context) error

	// Reports are probes that also describe the backend (pool statistics,
	// schema version) in /health.
	Reports map[string]func(ctx context.Context) (any, error)

	// Migrator is set for the postgres backend.
	Migrator *postgres.Migrator

	closers []func()
}

// Open connects the backend selected by cfg.Storage.Backend. With migrate set
// the postgres schema is brought up to date.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, migrate bool) (*Backend, error) {
	b := &Backend{
		Name:    string(cfg.Storage.Backend),
		Checks:  make(map[string]func(ctx context.Context) error),
		Reports: make(map[string]func(ctx context.Context) (any, error)),
	}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		b.Store = memory.NewStore()
		b.ActionLog = memory.NewActionLog()

	case config.StoragePostgres:
		conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, conn.Close)
		b.Reports["postgres"] = poolReport(conn)
		b.Migrator = postgres.NewMigrator(conn)

		if migrate {
			if err := b.Migrator.Migrate(ctx); err != nil {
				b.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("database schema is up to date")
		}

		b.guard(postgres.NewSnapshotStore(conn,
			postgres.WithTimeout(cfg.Database.QueryTimeout),
			postgres.WithLogger(log.With("component", "snapshot_store")),
		), log)
		b.ActionLog = postgres.NewActionLogRepository(conn)

	case config.StorageRedis:
		cache, err := redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.attachCache(cache)
		b.guard(redis.NewSnapshotStore(cache, cfg.Redis.SnapshotTTL), log)
		b.ActionLog = memory.NewActionLog()

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	// Redis next to postgres only serves locks; it stays optional.
	if b.Cache == nil && cfg.Redis.URL != "" {
		cache, err := redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("redis unavailable, job locks disabled", "error", err)
		} else {
			b.attachCache(cache)
		}
	}

	return b, nil
}

// guard puts a circuit breaker in front of a networked store.
func (b *Backend) guard(store shared.SnapshotStore, log *slog.Logger) {
	g := NewGuardedStore(b.Name, store, log)
	b.Store = g
	b.Checks["circuit"] = g.Ping
}

func poolReport(conn *postgres.Connection) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		report, err := conn.Health(ctx)
		if err != nil {
			return nil, err
		}
		return report, nil
	}
}

func (b *Backend) attachCache(cache *redis.Cache) {
	b.Cache = cache
	b.Checks["redis"] = cache.Ping
	b.closers = append(b.closers, func() { _ = cache.Close() })
}

// Close releases connections in reverse order.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func postgresConfig(c config.DatabaseConfig) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = c.URL
	if c.MaxOpenConns > 0 {
		pc.MaxConns = int32(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		pc.MinConns = int32(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = c.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = c.ConnMaxIdleTime
	}
	if c.QueryTimeout > 0 {
		pc.QueryTimeout = c.QueryTimeout
	}
	return pc
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = c.URL
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	if c.PoolSize > 0 {
		rc.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		rc.MinIdleConns = c.MinIdleConns
	}
	if c.DialTimeout > 0 {
		rc.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		rc.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		rc.WriteTimeout = c.WriteTimeout
	}
	return rc
}
