// Package main - точка входа для фоновых процессов учебного центра.
//
// Worker отвечает за периодические задачи:
// - Пересчёт ежемесячной оплаты всех учеников по текущему каталогу
//
// Команда `worker migrate up|down|status` управляет схемой PostgreSQL.
//
// Несколько экземпляров могут работать одновременно: при доступном Redis
// задача берёт распределённую блокировку.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/center-hub/center-hub/config"
	"github.com/center-hub/center-hub/internal/application/command"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
	"github.com/center-hub/center-hub/internal/infrastructure/messaging"
	"github.com/center-hub/center-hub/internal/infrastructure/persistence"
	"github.com/center-hub/center-hub/internal/infrastructure/scheduler"
	"github.com/center-hub/center-hub/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting center-hub worker",
		"env", cfg.App.Environment,
		"storage", cfg.Storage.Backend,
		"fees_cron", cfg.Scheduler.FeesCron,
	)

	if len(args) > 0 && args[0] == "migrate" {
		return runMigrate(ctx, cfg, log, args[1:])
	}

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := persistence.Open(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing storage...")
		backend.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	if err := messaging.RegisterAuditTrail(bus, backend.ActionLog, 5*time.Second); err != nil {
		return fmt.Errorf("subscribe audit trail: %w", err)
	}
	side := messaging.NewSideChannel(bus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КОМАНДЫ
	// ─────────────────────────────────────────────────────────────────────────
	commands, err := command.NewService(command.Deps{
		Students: student.NewRepository(backend.Store),
		Store:    backend.Store,
		Clock:    shared.NewSystemClock(cfg.App.Location),
		Notifier: side,
		Audit:    side,
		Events:   side,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	defer commands.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	schedConfig := scheduler.DefaultSchedulerConfig()
	schedConfig.Logger = log
	schedConfig.Timezone = cfg.App.Location
	schedConfig.JobTimeout = cfg.Scheduler.JobTimeout
	sched := scheduler.NewScheduler(schedConfig)

	var locker jobs.Locker
	if backend.Cache != nil {
		locker = backend.Cache
	} else {
		log.Warn("redis not configured, run a single worker instance")
	}

	feesJob := jobs.NewRecalculateFeesJob(commands, locker, log, jobs.DefaultRecalculateFeesConfig())
	if err := sched.Register(feesJob, cfg.Scheduler.FeesCron); err != nil {
		return fmt.Errorf("register %s: %w", feesJob.Name(), err)
	}

	sched.OnJobComplete(func(r scheduler.JobResult) {
		if res := feesJob.LastResult(); r.JobName == feesJob.Name() && r.Success && res != nil {
			log.Info("fees resynced", "checked", res.Checked, "changed", res.Changed)
		}
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	for _, info := range sched.ListJobs() {
		log.Info("job scheduled", "job", info.Name, "schedule", info.Schedule, "next_run", info.NextRun)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	done := make(chan struct{})
	go func() {
		_ = sched.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("shutdown completed successfully")
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("shutdown timed out, running jobs were abandoned")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// runMigrate открывает PostgreSQL без автоматической миграции и выполняет
// подкоманду migrate.
func runMigrate(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string) error {
	if cfg.Storage.Backend != config.StoragePostgres {
		return fmt.Errorf("migrate needs STORAGE_BACKEND=postgres, got %q", cfg.Storage.Backend)
	}

	backend, err := persistence.Open(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer backend.Close()

	cli := &migrateCLI{migrator: backend.Migrator, out: os.Stdout}
	return cli.run(ctx, args)
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() || cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", cfg.App.Name+"-worker")
	slog.SetDefault(log)
	return log
}
