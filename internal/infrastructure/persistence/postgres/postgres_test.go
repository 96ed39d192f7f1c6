package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=progression user=postgres password=secret sslmode=disable connect_timeout=10",
		cfg.DSN())

	cfg.URL = "postgres://u:p@db:5432/progression"
	assert.Equal(t, "postgres://u:p@db:5432/progression", cfg.DSN())
}

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConns = 7

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, "localhost", pc.ConnConfig.Host)
}

func TestConfig_PoolConfigInvalid(t *testing.T) {
	_, err := Config{URL: "postgres://%zz"}.PoolConfig()
	assert.Error(t, err)
}

func TestGetMigrations_Ordered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

func TestPending(t *testing.T) {
	applied := map[int]time.Time{1: time.Now()}
	got := pending(GetMigrations(), applied)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Version)

	assert.Empty(t, pending(GetMigrations(), map[int]time.Time{1: {}, 2: {}}))
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key, category, learner string
	}{
		{"progression:alice", "progression", "alice"},
		{"quests:user:42", "quests", "user:42"},
		{"bare", "", "bare"},
	}
	for _, tt := range tests {
		c, l := splitKey(tt.key)
		assert.Equal(t, tt.category, c, tt.key)
		assert.Equal(t, tt.learner, l, tt.key)
	}
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("other")))

	assert.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsTransient(fmt.Errorf("put: %w", &pgconn.PgError{Code: "08006"})))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTransient(errors.New("plain")))
}
