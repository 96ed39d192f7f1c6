package reward

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

func TestGrantKey_Deterministic(t *testing.T) {
	a := GrantKey("alice", "quest:daily:2026-10-16:time", 0)
	b := GrantKey("alice", "quest:daily:2026-10-16:time", 0)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, GrantKey("alice", "quest:daily:2026-10-16:time", 1))
	assert.NotEqual(t, a, GrantKey("bob", "quest:daily:2026-10-16:time", 0))
}

func TestStamp_DoesNotMutateInput(t *testing.T) {
	in := []Reward{XP(50), Coins(10)}
	out := Stamp("alice", "streak:3", in)

	assert.Empty(t, in[0].Key)
	assert.NotEmpty(t, out[0].Key)
	assert.NotEqual(t, out[0].Key, out[1].Key)
}

func TestWallet_ClaimOnce(t *testing.T) {
	var w Wallet
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	assert.True(t, w.Claim("k1", now))
	assert.False(t, w.Claim("k1", now.Add(time.Hour)))
	assert.Equal(t, now, w.Granted["k1"])

	// Unkeyed rewards are never deduplicated.
	assert.True(t, w.Claim("", now))
	assert.True(t, w.Claim("", now))
}

func TestWallet_TitlesAreASet(t *testing.T) {
	var w Wallet
	now := time.Now()
	assert.True(t, w.AddTitle("Scholar", now))
	assert.False(t, w.AddTitle("Scholar", now))
	assert.True(t, w.HasTitle("Scholar"))
	assert.Len(t, w.Titles, 1)
}

func TestWallet_AddCoinsIgnoresNegative(t *testing.T) {
	var w Wallet
	w.AddCoins(10)
	w.AddCoins(-5)
	assert.Equal(t, int64(10), w.Coins)
}

func TestWallet_AddCoinsSaturates(t *testing.T) {
	w := Wallet{Coins: math.MaxInt64 - 1}
	w.AddCoins(10)
	assert.Equal(t, int64(math.MaxInt64), w.Coins)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, XP(10).Validate())
	assert.NoError(t, Item("hint", 2).Validate())
	assert.NoError(t, Badge("first_steps", shared.RarityCommon).Validate())

	assert.ErrorIs(t, Reward{Kind: KindCoins, Amount: -1}.Validate(), shared.ErrNegativeValue)
	assert.ErrorIs(t, Reward{Kind: KindTitle}.Validate(), shared.ErrEmptyValue)
	assert.ErrorIs(t, Reward{Kind: "gem"}.Validate(), shared.ErrInvalidInput)
}
