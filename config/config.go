// Package config loads the progression service configuration from the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/alem-hub/learner-progression/internal/application/engine"
	"github.com/alem-hub/learner-progression/internal/domain/streak"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/learner-progression/pkg/timeutil"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Store         StoreConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Progression   ProgressionConfig
	Worker        WorkerConfig
	Observability ObservabilityConfig

	// location is resolved from App.Timezone by Load.
	location *time.Location
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string      `env:"APP_NAME" envDefault:"learner-progression"`
	Environment Environment `env:"APP_ENV" envDefault:"development"`
	Version     string      `env:"APP_VERSION" envDefault:"0.1.0"`

	// Timezone names the calendar that day and week boundaries are cut in.
	Timezone string `env:"APP_TIMEZONE" envDefault:"UTC"`

	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Concurrency - learners replayed in parallel by the CLI host.
	Concurrency int `env:"APP_CONCURRENCY" envDefault:"8"`
}

// StoreConfig selects the progress store backend.
type StoreConfig struct {
	// Engine - memory, sqlite, postgres or redis.
	Engine        string `env:"STORE_ENGINE" envDefault:"memory"`
	SQLitePath    string `env:"STORE_SQLITE_PATH" envDefault:"progression.db"`
	RetryAttempts int    `env:"STORE_RETRY_ATTEMPTS" envDefault:"3"`
	Migrate       bool   `env:"STORE_MIGRATE" envDefault:"true"`

	// Journal appends every progression event to the postgres event table.
	Journal bool `env:"STORE_JOURNAL" envDefault:"false"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	URL             string        `env:"DATABASE_URL"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	Name            string        `env:"DB_NAME" envDefault:"progression"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"30m"`
	ConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
}

// RedisConfig holds Redis settings for the store and event fan-out.
type RedisConfig struct {
	Host         string        `env:"REDIS_HOST" envDefault:"localhost"`
	Port         int           `env:"REDIS_PORT" envDefault:"6379"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB" envDefault:"0"`
	Prefix       string        `env:"REDIS_PREFIX" envDefault:"progression:"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	// PublishEvents fans progression events out on Redis pub/sub.
	PublishEvents bool   `env:"REDIS_PUBLISH_EVENTS" envDefault:"false"`
	EventsPrefix  string `env:"REDIS_EVENTS_PREFIX" envDefault:"progression:events:"`
}

// ProgressionConfig holds the tunable progression rules.
type ProgressionConfig struct {
	StreakMilestones  []int `env:"PROGRESSION_STREAK_MILESTONES" envSeparator:"," envDefault:"3,7,14,30"`
	StreakGraceDays   int   `env:"PROGRESSION_STREAK_GRACE_DAYS" envDefault:"0"`
	StreakHistoryDays int   `env:"PROGRESSION_STREAK_HISTORY_DAYS" envDefault:"90"`
	AutoDailyQuests   bool  `env:"PROGRESSION_AUTO_DAILY_QUESTS" envDefault:"true"`
	AutoWeeklyQuests  bool  `env:"PROGRESSION_AUTO_WEEKLY_QUESTS" envDefault:"true"`
	QuestHistoryDays  int   `env:"PROGRESSION_QUEST_HISTORY_DAYS" envDefault:"30"`
}

// WorkerConfig holds background job settings.
type WorkerConfig struct {
	// Rollover time, in the configured timezone.
	RolloverHour   int `env:"WORKER_ROLLOVER_HOUR" envDefault:"0"`
	RolloverMinute int `env:"WORKER_ROLLOVER_MINUTE" envDefault:"5"`

	RolloverConcurrency int           `env:"WORKER_ROLLOVER_CONCURRENCY" envDefault:"5"`
	RolloverTimeout     time.Duration `env:"WORKER_ROLLOVER_TIMEOUT" envDefault:"10m"`
	RunOnStart          bool          `env:"WORKER_RUN_ON_START" envDefault:"true"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`  // debug, info, warn, error
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json, text
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cal, err := timeutil.LoadCalendar(cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app config: %w", err)
	}
	cfg.location = cal.Location()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Sprintf("APP_ENV %q is not development, staging or production", c.App.Environment))
	}

	if c.App.Concurrency < 1 {
		errs = append(errs, "APP_CONCURRENCY must be at least 1")
	}

	switch strings.ToLower(c.Store.Engine) {
	case persistence.EngineMemory, persistence.EngineSQLite, persistence.EnginePostgres, persistence.EngineRedis:
	default:
		errs = append(errs, fmt.Sprintf("STORE_ENGINE %q is not memory, sqlite, postgres or redis", c.Store.Engine))
	}

	if strings.EqualFold(c.Store.Engine, persistence.EngineSQLite) && c.Store.SQLitePath == "" {
		errs = append(errs, "STORE_SQLITE_PATH is required for the sqlite engine")
	}

	// Progress kept in memory is lost on exit.
	if c.App.Environment == EnvProduction && strings.EqualFold(c.Store.Engine, persistence.EngineMemory) {
		errs = append(errs, "STORE_ENGINE memory is not allowed in production")
	}

	if c.Store.Journal && !strings.EqualFold(c.Store.Engine, persistence.EnginePostgres) {
		errs = append(errs, "STORE_JOURNAL requires the postgres engine")
	}

	if c.Worker.RolloverHour < 0 || c.Worker.RolloverHour > 23 {
		errs = append(errs, "WORKER_ROLLOVER_HOUR must be 0-23")
	}
	if c.Worker.RolloverMinute < 0 || c.Worker.RolloverMinute > 59 {
		errs = append(errs, "WORKER_ROLLOVER_MINUTE must be 0-59")
	}

	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		errs = append(errs, "REDIS_DB must be 0-15")
	}

	if c.Progression.StreakGraceDays < 0 {
		errs = append(errs, "PROGRESSION_STREAK_GRACE_DAYS must not be negative")
	}
	if c.Progression.StreakHistoryDays < 0 {
		errs = append(errs, "PROGRESSION_STREAK_HISTORY_DAYS must not be negative")
	}
	if c.Progression.QuestHistoryDays < 0 {
		errs = append(errs, "PROGRESSION_QUEST_HISTORY_DAYS must not be negative")
	}
	for _, m := range c.Progression.StreakMilestones {
		if m < 1 {
			errs = append(errs, fmt.Sprintf("PROGRESSION_STREAK_MILESTONES has non-positive milestone %d", m))
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERTERS
// ══════════════════════════════════════════════════════════════════════════════

// Location returns the configured time zone. It is UTC until Load ran.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Calendar returns the calendar of the configured time zone.
func (c *Config) Calendar() timeutil.Calendar {
	return timeutil.NewCalendar(c.Location())
}

// StreakPolicy returns the configured streak rules.
func (c *Config) StreakPolicy() streak.Policy {
	milestones := c.Progression.StreakMilestones
	if len(milestones) == 0 {
		milestones = streak.DefaultMilestones
	}
	return streak.Policy{
		Milestones:  append([]int(nil), milestones...),
		GraceDays:   c.Progression.StreakGraceDays,
		HistoryDays: c.Progression.StreakHistoryDays,
	}
}

// EngineConfig returns the engine settings.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Streak:           c.StreakPolicy(),
		AutoDailyQuests:  c.Progression.AutoDailyQuests,
		AutoWeeklyQuests: c.Progression.AutoWeeklyQuests,
		QuestHistoryDays: c.Progression.QuestHistoryDays,
	}
}

// PersistenceConfig returns the store backend settings.
func (c *Config) PersistenceConfig() persistence.Config {
	pg := postgres.DefaultConfig()
	pg.URL = c.Postgres.URL
	pg.Host = c.Postgres.Host
	pg.Port = c.Postgres.Port
	pg.Database = c.Postgres.Name
	pg.User = c.Postgres.User
	pg.Password = c.Postgres.Password
	pg.SSLMode = c.Postgres.SSLMode
	pg.MaxConns = c.Postgres.MaxConns
	pg.MinConns = c.Postgres.MinConns
	pg.MaxConnLifetime = c.Postgres.ConnMaxLifetime
	pg.MaxConnIdleTime = c.Postgres.ConnMaxIdleTime
	pg.ConnectTimeout = c.Postgres.ConnectTimeout

	return persistence.Config{
		Engine:        c.Store.Engine,
		SQLitePath:    c.Store.SQLitePath,
		Postgres:      pg,
		Redis:         c.RedisStoreConfig(),
		Migrate:       c.Store.Migrate,
		RetryAttempts: c.Store.RetryAttempts,
	}
}

// RedisStoreConfig returns the Redis client settings.
func (c *Config) RedisStoreConfig() redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = c.Redis.Host
	rc.Port = c.Redis.Port
	rc.Password = c.Redis.Password
	rc.DB = c.Redis.DB
	rc.Prefix = c.Redis.Prefix
	rc.PoolSize = c.Redis.PoolSize
	rc.MinIdleConns = c.Redis.MinIdleConns
	rc.DialTimeout = c.Redis.DialTimeout
	rc.ReadTimeout = c.Redis.ReadTimeout
	rc.WriteTimeout = c.Redis.WriteTimeout
	return rc
}
