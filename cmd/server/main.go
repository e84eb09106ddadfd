// Package main - точка входа HTTP API учебного центра.
//
// Сервер обслуживает карточку ученика: воронку продаж, предметы и скидки,
// группы, журналы посещаемости и экзаменов, а также производные метрики
// (оплата, статистика посещаемости, тепловая карта экзаменов).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/center-hub/center-hub/config"
	"github.com/center-hub/center-hub/internal/application/command"
	"github.com/center-hub/center-hub/internal/application/query"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/domain/student"
	"github.com/center-hub/center-hub/internal/infrastructure/messaging"
	"github.com/center-hub/center-hub/internal/infrastructure/persistence"
	api "github.com/center-hub/center-hub/internal/interface/http"
	"github.com/center-hub/center-hub/internal/interface/http/handlers"
	"github.com/center-hub/center-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
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
	accessLog := setupAccessLogger(cfg)
	defer func() { _ = accessLog.Sync() }()

	log.Info("starting center-hub API",
		"env", cfg.App.Environment,
		"storage", cfg.Storage.Backend,
		"timezone", cfg.App.Timezone,
	)

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
	// 4. EVENT BUS И ПОБОЧНЫЕ КАНАЛЫ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	if err := messaging.RegisterNotificationLog(bus, log.With("component", "notifications")); err != nil {
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	if err := messaging.RegisterAuditTrail(bus, backend.ActionLog, 5*time.Second); err != nil {
		return fmt.Errorf("subscribe audit trail: %w", err)
	}
	side := messaging.NewSideChannel(bus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	clock := shared.NewSystemClock(cfg.App.Location)
	students := student.NewRepository(backend.Store)

	commands, err := command.NewService(command.Deps{
		Students:  students,
		Store:     backend.Store,
		Clock:     clock,
		Notifier:  side,
		Audit:     side,
		Events:    side,
		Logger:    log,
		UndoAfter: cfg.UndoExpiry(),
	})
	if err != nil {
		return err
	}
	defer commands.Close()

	health := handlers.NewCompositeHealthChecker(cfg.App.Version, backend.Name)
	for name, check := range backend.Checks {
		health.AddCheck(name, check)
	}
	for name, report := range backend.Reports {
		health.AddReport(name, report)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := api.DefaultConfig()
	httpConfig.Addr = cfg.HTTP.Addr
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.APIKeyHashes = cfg.HTTP.APIKeyHashes
	httpConfig.RateLimitPerSecond = cfg.HTTP.RateLimitPerSecond
	httpConfig.RateLimitBurst = cfg.HTTP.RateLimitBurst
	httpConfig.Debug = cfg.App.Debug

	if len(httpConfig.APIKeyHashes) == 0 {
		log.Warn("no API key hashes configured, the API is open")
	}

	server, err := api.NewServer(httpConfig, api.Dependencies{
		Commands:      commands,
		GetStudent:    query.NewGetStudentHandler(students, backend.Store, clock),
		GetFinance:    query.NewGetFinanceHandler(students, backend.Store),
		GetAttendance: query.NewGetAttendanceHandler(students, backend.Store),
		GetExams:      query.NewGetExamsHandler(students, backend.Store),
		GetCourses:    query.NewGetStudentCoursesHandler(students, backend.Store),
		ListCatalog:   query.NewListCatalogHandler(backend.Store),
		GetHistory:    query.NewGetHistoryHandler(backend.ActionLog),
		Logger:        accessLog,
		HealthChecker: health,
	})
	if err != nil {
		return err
	}
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает slog для прикладного слоя.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", cfg.App.Name)
	slog.SetDefault(log)
	return log
}

// setupAccessLogger настраивает zap-логгер HTTP-запросов.
func setupAccessLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.Observability.LogFormat == "text" {
		opts.Format = "console"
	}
	return logger.New(opts).With(logger.String("service", cfg.App.Name))
}

func slogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
