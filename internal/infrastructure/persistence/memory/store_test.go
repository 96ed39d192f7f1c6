package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_GetMissing(t *testing.T) {
	s := New()
	var d doc
	found, err := s.Get(context.Background(), "nope", &d)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_PutGetIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	in := doc{Name: "alice", Count: 3}
	require.NoError(t, s.Put(ctx, "progression:alice", in))
	in.Count = 99

	var out doc
	found, err := s.Get(ctx, "progression:alice", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, doc{Name: "alice", Count: 3}, out)
}

func TestStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(ctx, "k", doc{Count: 1}))
	require.NoError(t, s.Put(ctx, "k", doc{Count: 2}))

	var out doc
	_, err := s.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(ctx, "k", doc{}))
	require.NoError(t, s.Delete(ctx, "k"))
	found, err := s.Get(ctx, "k", &doc{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()
	assert.ErrorIs(t, s.Put(ctx, "k", doc{}), context.Canceled)
	_, err := s.Get(ctx, "k", &doc{})
	assert.ErrorIs(t, err, context.Canceled)
}
