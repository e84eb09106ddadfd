// Package jobs contains the scheduled jobs of the center back end.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/center-hub/center-hub/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE FEES JOB
// ══════════════════════════════════════════════════════════════════════════════

// FeeRecalculator resyncs MonthlyFee of every student.
type FeeRecalculator interface {
	RecalculateFees(ctx context.Context) (*command.RecalculateFeesResult, error)
}

// Locker takes a cluster-wide lock so that only one worker runs the job.
// ok=false means another holder owns the lock.
type Locker interface {
	TryLock(ctx context.Context, resource, token string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// RecalculateFeesConfig contains configuration for the job.
type RecalculateFeesConfig struct {
	// LockTTL bounds how long a crashed worker can block others.
	LockTTL time.Duration
}

// DefaultRecalculateFeesConfig returns sensible defaults.
func DefaultRecalculateFeesConfig() RecalculateFeesConfig {
	return RecalculateFeesConfig{LockTTL: 10 * time.Minute}
}

// RecalculateFeesJob brings stored monthly fees in line with the current
// course catalog after price changes.
type RecalculateFeesJob struct {
	fees   FeeRecalculator
	locker Locker
	logger *slog.Logger
	config RecalculateFeesConfig

	lastResult atomic.Pointer[command.RecalculateFeesResult]
}

// NewRecalculateFeesJob creates the job. locker may be nil for a single worker.
func NewRecalculateFeesJob(fees FeeRecalculator, locker Locker, logger *slog.Logger, config RecalculateFeesConfig) *RecalculateFeesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultRecalculateFeesConfig().LockTTL
	}
	return &RecalculateFeesJob{
		fees:   fees,
		locker: locker,
		logger: logger.With("job", "recalculate_fees"),
		config: config,
	}
}

// Name implements scheduler.Job.
func (j *RecalculateFeesJob) Name() string { return "recalculate_fees" }

// Description implements scheduler.Job.
func (j *RecalculateFeesJob) Description() string {
	return "Resync monthly fees of all students with the course catalog"
}

// Run implements scheduler.Job.
func (j *RecalculateFeesJob) Run(ctx context.Context) error {
	if j.locker != nil {
		release, ok, err := j.locker.TryLock(ctx, j.Name(), uuid.New().String(), j.config.LockTTL)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			j.logger.Info("skipped, another worker holds the lock")
			return nil
		}
		defer func() {
			// освобождаем даже после отмены ctx
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				j.logger.Warn("release lock failed", "error", err)
			}
		}()
	}

	res, err := j.fees.RecalculateFees(ctx)
	if err != nil {
		return fmt.Errorf("recalculate fees: %w", err)
	}
	j.lastResult.Store(res)
	return nil
}

// LastResult returns the outcome of the last successful run.
func (j *RecalculateFeesJob) LastResult() *command.RecalculateFeesResult {
	return j.lastResult.Load()
}
