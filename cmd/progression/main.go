// Package main is the progression replay host. It reads learner activity
// as JSON lines, feeds it through the progression engine and prints one
// summary per learner.
//
// Input lines look like
//
//	{"learner":"alice","type":"problem_solved","payload":{"accuracy":0.9,"difficulty":6},"timestamp":"2026-10-16T12:00:00Z"}
//
// and may carry an "op" of day, powerup, end_session, grant or quest to
// drive the other engine operations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/learner-progression/config"
	"github.com/alem-hub/learner-progression/internal/application/engine"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/internal/infrastructure/messaging"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/learner-progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	input := flag.String("input", "-", "JSONL activity file, - for stdin")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *input, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, input string, stdout io.Writer) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	runID := uuid.NewString()
	log := setupLogger(cfg).With("run_id", runID)
	log.Info("starting progression replay",
		"env", cfg.App.Environment,
		"store", cfg.Store.Engine,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORE
	// ─────────────────────────────────────────────────────────────────────────
	engineLog := setupEngineLogger(cfg).With(logger.String("run_id", runID))

	store, err := persistence.Open(ctx, cfg.PersistenceConfig(), engineLog)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus := messaging.NewEventBus(log)
	defer bus.Close()

	if cfg.Store.Journal && store.Journal != nil {
		if err := bus.SubscribeAll(store.Journal.Handle); err != nil {
			return fmt.Errorf("subscribe journal: %w", err)
		}
		log.Info("event journal enabled")
	}

	if cfg.Redis.PublishEvents {
		client, err := redis.NewStore(ctx, cfg.RedisStoreConfig())
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		pub := messaging.NewRedisPublisher(client.Client(), cfg.Redis.EventsPrefix)
		if err := bus.SubscribeAll(pub.Handle); err != nil {
			return fmt.Errorf("subscribe redis publisher: %w", err)
		}
		log.Info("redis event fan-out enabled", "prefix", cfg.Redis.EventsPrefix)
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
	// 4. REPLAY
	// ─────────────────────────────────────────────────────────────────────────
	r, closeInput, err := openInput(input)
	if err != nil {
		return err
	}
	defer closeInput()

	byLearner, err := readLines(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	start := time.Now()
	rp := &replayer{engine: eng, log: log, concurrency: cfg.App.Concurrency}
	summaries, err := rp.run(ctx, byLearner)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	enc := json.NewEncoder(stdout)
	for _, s := range summaries {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	m := bus.Metrics()
	log.Info("replay completed",
		"learners", len(summaries),
		"events_published", m.TotalPublications,
		"handler_failures", m.HandlerFailures,
		"duration", time.Since(start),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// setupLogger configures the host's structured logging. Logs go to stderr
// so stdout carries only summaries.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}

	var handler slog.Handler
	if cfg.IsProduction() || strings.EqualFold(cfg.Observability.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func setupEngineLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output: os.Stderr,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})
}

func slogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
