package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/pkg/retry"
)

// SnapshotStore implements shared.SnapshotStore over the snapshots table.
// Transient driver errors are retried; everything else surfaces at once.
type SnapshotStore struct {
	db      Querier
	retrier *retry.Retrier
	timeout time.Duration
	logger  *slog.Logger
}

// SnapshotStoreOption configures a SnapshotStore.
type SnapshotStoreOption func(*SnapshotStore)

// WithRetrier replaces the default database retrier.
func WithRetrier(r *retry.Retrier) SnapshotStoreOption {
	return func(s *SnapshotStore) { s.retrier = r }
}

// WithTimeout bounds each call when the caller's context has no deadline.
func WithTimeout(d time.Duration) SnapshotStoreOption {
	return func(s *SnapshotStore) { s.timeout = d }
}

// WithLogger sets the logger used for retry reports.
func WithLogger(l *slog.Logger) SnapshotStoreOption {
	return func(s *SnapshotStore) { s.logger = l }
}

// NewSnapshotStore creates a store over db (a *Connection or a pgx.Tx).
func NewSnapshotStore(db Querier, opts ...SnapshotStoreOption) *SnapshotStore {
	s := &SnapshotStore{
		db:      db,
		timeout: 30 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retrier == nil {
		s.retrier = retry.DatabaseRetrier(IsTransient, retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			s.logger.Warn("snapshot store retry", "attempt", attempt, "delay", delay, "error", err)
		}))
	}
	return s
}

// Load decodes the JSON document under key into dest.
func (s *SnapshotStore) Load(ctx context.Context, key string, dest any) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var raw []byte
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.db.QueryRow(ctx, `SELECT value FROM snapshots WHERE key = $1`, key).Scan(&raw)
	})
	if IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "postgres: load snapshot %q", key)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return true, errors.Wrapf(err, "postgres: decode snapshot %q", key)
	}
	return true, nil
}

// Save upserts the whole collection under key.
func (s *SnapshotStore) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "postgres: encode snapshot %q", key)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO snapshots (key, value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value,
			    version = snapshots.version + 1,
			    updated_at = NOW()
		`, key, raw)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "postgres: save snapshot %q", key)
	}
	return nil
}

func (s *SnapshotStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

var _ shared.SnapshotStore = (*SnapshotStore)(nil)
