// Package persistence opens the configured progress store backend and
// wraps it with retries and a circuit breaker.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/learner-progression/pkg/circuitbreaker"
	"github.com/alem-hub/learner-progression/pkg/logger"
	"github.com/alem-hub/learner-progression/pkg/retry"
)

// Backend names.
const (
	EngineMemory   = "memory"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineRedis    = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Engine     string
	SQLitePath string
	Postgres   postgres.Config
	Redis      redis.Config

	// Migrate runs the embedded postgres migrations on open.
	Migrate bool

	// RetryAttempts - attempts per store call. Values below 2 disable
	// retries.
	RetryAttempts int
}

// Handle is an opened backend.
type Handle struct {
	Store learner.Store

	// Journal is set for the postgres backend.
	Journal *postgres.Journal

	closers []func() error
}

// Close releases the backend.
func (h *Handle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open opens the backend named by cfg.Engine. An empty name means memory.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Handle, error) {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handle{}
	engine := strings.ToLower(strings.TrimSpace(cfg.Engine))

	switch engine {
	case "", EngineMemory:
		engine = EngineMemory
		h.Store = memory.New()

	case EngineSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		h.Store = s
		h.closers = append(h.closers, s.Close)

	case EnginePostgres:
		conn, err := postgres.NewConnection(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return nil, err
			}
		}
		h.Store = postgres.NewStore(conn)
		h.Journal = postgres.NewJournal(conn)
		h.closers = append(h.closers, func() error { conn.Close(); return nil })

	case EngineRedis:
		s, err := redis.NewStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		h.Store = s
		h.closers = append(h.closers, s.Close)

	default:
		return nil, fmt.Errorf("unknown store engine %q", cfg.Engine)
	}

	if engine != EngineMemory {
		h.Store = NewResilient(h.Store, engine, cfg.RetryAttempts, log)
	}
	log.Info("progress store opened", logger.String("engine", engine))
	return h, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESILIENT STORE
// ══════════════════════════════════════════════════════════════════════════════

// Resilient retries transient store failures and stops calling a backend
// that keeps failing. The last error is returned unchanged.
type Resilient struct {
	next    learner.Store
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewResilient wraps next. name labels the breaker and log lines.
func NewResilient(next learner.Store, name string, attempts int, log *logger.Logger) *Resilient {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("store"), logger.String("engine", name))

	r := &Resilient{next: next, log: log}
	r.retrier = retry.StoreRetrier(attempts,
		retry.WithRetryIf(retryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("store call failed, retrying",
				logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Err(err))
		}),
	)
	r.breaker = circuitbreaker.StoreBreaker(name, retryable, func(name string, from, to circuitbreaker.State) {
		log.Warn("store circuit state changed",
			logger.String("from", from.String()), logger.String("to", to.String()))
	})
	return r
}

// Get implements learner.Store.
func (r *Resilient) Get(ctx context.Context, key string, dest any) (bool, error) {
	var found bool
	err := r.call(ctx, "Get", key, func(ctx context.Context) error {
		var err error
		found, err = r.next.Get(ctx, key, dest)
		return err
	})
	return found, err
}

// Put implements learner.Store.
func (r *Resilient) Put(ctx context.Context, key string, value any) error {
	return r.call(ctx, "Put", key, func(ctx context.Context) error {
		return r.next.Put(ctx, key, value)
	})
}

// Keys implements learner.Lister when the wrapped store does.
func (r *Resilient) Keys(ctx context.Context, prefix string) ([]string, error) {
	l, ok := r.next.(learner.Lister)
	if !ok {
		return nil, fmt.Errorf("%T cannot list keys", r.next)
	}
	var keys []string
	err := r.call(ctx, "Keys", prefix, func(ctx context.Context) error {
		var err error
		keys, err = l.Keys(ctx, prefix)
		return err
	})
	return keys, err
}

func (r *Resilient) call(ctx context.Context, op, key string, fn func(context.Context) error) error {
	start := time.Now()
	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		err := r.breaker.Execute(ctx, fn)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		r.log.Error("store call failed",
			logger.Operation(op), logger.StoreKey(key), logger.Latency(time.Since(start)), logger.Err(err))
	}
	return err
}

// retryable rejects cancellations and encoding failures, which repeat
// identically.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var unsupported *json.UnsupportedTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &unsupported) {
		return false
	}
	return !errors.Is(err, redis.ErrSerialization)
}
