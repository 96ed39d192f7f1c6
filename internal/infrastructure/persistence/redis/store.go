// Package redis implements the Redis backend of the progress store. Each
// store key maps to one JSON string under a namespace prefix.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	Host     string
	Port     int
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// Prefix namespaces every key, e.g. "progression:" turns
	// "streak:alice" into "progression:streak:alice".
	Prefix string

	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a local development configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		Prefix:       "progression:",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Options converts c to client options.
func (c Config) Options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnection is returned when Redis cannot be reached.
	ErrConnection = errors.New("redis: connection failed")

	// ErrSerialization is returned when a value cannot be encoded or decoded.
	ErrSerialization = errors.New("redis: serialization failed")

	// ErrKeyEmpty is returned for an empty key.
	ErrKeyEmpty = errors.New("redis: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store is a learner.Store over a Redis client. Keys never expire.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewStore connects with cfg and verifies the connection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(cfg.Options())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return NewStoreWithClient(client, cfg.Prefix), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Key returns the namespaced Redis key for a store key.
func (s *Store) Key(key string) string {
	return s.prefix + key
}

// Client returns the underlying client, e.g. for pub/sub.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// Get decodes the value at key into dest.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	data, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrSerialization, key, err)
	}
	return true, nil
}

// Put encodes value and stores it at key with no expiry.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrKeyEmpty
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSerialization, key, err)
	}
	if err := s.client.Set(ctx, s.Key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: put %s: %w", key, err)
	}
	return nil
}

// Keys returns the store keys starting with prefix, sorted. It walks the
// keyspace with SCAN, so keys written during the walk may be missed.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := globEscaper.Replace(s.Key(prefix)) + "*"
	var keys []string
	iter := s.client.Scan(ctx, 0, match, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan %s: %w", match, err)
	}
	sort.Strings(keys)
	return keys, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
