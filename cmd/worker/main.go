// Package main is the progression worker. It runs the background jobs:
// today the daily quest rollover, which gives every stored learner the
// quests of the new day and week and expires overdue ones.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alem-hub/learner-progression/config"
	"github.com/alem-hub/learner-progression/internal/application/engine"
	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/internal/infrastructure/messaging"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence"
	"github.com/alem-hub/learner-progression/internal/infrastructure/scheduler"
	"github.com/alem-hub/learner-progression/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/learner-progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting progression worker",
		"env", cfg.App.Environment,
		"store", cfg.Store.Engine,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORE AND ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	engineLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	store, err := persistence.Open(ctx, cfg.PersistenceConfig(), engineLog)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		log.Info("closing store...")
		if err := store.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	lister, ok := store.Store.(learner.Lister)
	if !ok {
		return fmt.Errorf("store engine %q cannot list learners", cfg.Store.Engine)
	}

	bus := messaging.NewEventBus(log)
	defer bus.Close()
	if cfg.Store.Journal && store.Journal != nil {
		if err := bus.SubscribeAll(store.Journal.Handle); err != nil {
			return fmt.Errorf("subscribe journal: %w", err)
		}
	}

	engineCfg := cfg.EngineConfig()
	eng, err := engine.New(engine.Deps{
		Store:     store.Store,
		Clock:     shared.SystemClock,
		Publisher: bus,
		Logger:    engineLog,
		Calendar:  cfg.Calendar(),
		Config:    &engineCfg,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	rollover := jobs.NewQuestRolloverJob(eng, lister, shared.SystemClock, log, jobs.QuestRolloverConfig{
		Concurrency: cfg.Worker.RolloverConcurrency,
		Timeout:     cfg.Worker.RolloverTimeout,
		Weekly:      true,
	})

	sched := scheduler.New(scheduler.Config{Logger: log})
	if err := sched.Register(rollover,
		scheduler.NewDailySchedule(cfg.Worker.RolloverHour, cfg.Worker.RolloverMinute, cfg.Location())); err != nil {
		return fmt.Errorf("register rollover: %w", err)
	}

	if cfg.Worker.RunOnStart {
		if _, err := sched.RunNow(ctx, rollover.Name()); err != nil {
			log.Warn("initial rollover failed", "error", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("progression worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal", "timeout", cfg.App.ShutdownTimeout.String())

	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler", "error", err)
	}

	m := sched.Metrics()
	log.Info("shutdown completed",
		"job_runs", m.TotalExecutions,
		"job_failures", m.TotalFailures,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if strings.EqualFold(cfg.Observability.LogLevel, "debug") {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() || strings.EqualFold(cfg.Observability.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
