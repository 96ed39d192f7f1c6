package powerup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/pkg/timeutil"
)

var now = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func stocked(id string, n int) Inventory {
	inv := NewInventory()
	inv.Stock[id] = n
	return inv
}

func TestUse_AppliesEffectAndUpdatesLedger(t *testing.T) {
	g := NewGovernor(nil, timeutil.UTC)
	inv := stocked("focus_boost", 2)

	res := g.Use(&inv, "focus_boost", now)
	require.True(t, res.Applied)
	assert.Equal(t, EffectLearningBoost, res.Effect.Type)
	assert.InDelta(t, 1.25, res.Effect.LearningBoost, 1e-9)
	assert.Equal(t, 1, res.Remaining)

	u := inv.Usage["focus_boost"]
	assert.Equal(t, 1, u.SessionCount)
	assert.Equal(t, 1, u.DailyCount["2026-10-16"])
	require.NotNil(t, u.LastUsed)
	assert.Equal(t, now, *u.LastUsed)
}

func TestUse_CooldownRefusesWithoutStateChange(t *testing.T) {
	g := NewGovernor(nil, timeutil.UTC)
	inv := stocked("extra_time", 5)

	require.True(t, g.Use(&inv, "extra_time", now).Applied)
	before := inv.Usage["extra_time"]

	res := g.Use(&inv, "extra_time", now.Add(9*time.Minute))
	assert.False(t, res.Applied)
	assert.ErrorIs(t, res.Reason, shared.ErrPowerUpCooling)
	assert.Equal(t, 4, inv.Stock["extra_time"])
	assert.Equal(t, before, inv.Usage["extra_time"])

	assert.True(t, g.Use(&inv, "extra_time", now.Add(10*time.Minute)).Applied)
}

func TestUse_SessionLimit(t *testing.T) {
	g := NewGovernor(nil, timeutil.UTC)
	inv := stocked("hint", 10)

	for i := 0; i < 3; i++ {
		require.True(t, g.Use(&inv, "hint", now).Applied)
	}
	res := g.Use(&inv, "hint", now)
	assert.False(t, res.Applied)
	assert.ErrorIs(t, res.Reason, shared.ErrPowerUpLimited)
	assert.Equal(t, 7, inv.Stock["hint"])

	EndSession(&inv)
	assert.True(t, g.Use(&inv, "hint", now).Applied)
}

func TestUse_DailyLimitResetsOnNewDay(t *testing.T) {
	g := NewGovernor(nil, timeutil.UTC)
	inv := stocked("double_xp", 3)

	require.True(t, g.Use(&inv, "double_xp", now).Applied)
	EndSession(&inv)
	assert.False(t, g.CanUse(inv, "double_xp", now.Add(2*time.Hour)))

	tomorrow := now.Add(24 * time.Hour)
	assert.True(t, g.CanUse(inv, "double_xp", tomorrow))
	require.True(t, g.Use(&inv, "double_xp", tomorrow).Applied)
	assert.Equal(t, map[string]int{"2026-10-17": 1}, inv.Usage["double_xp"].DailyCount)
}

func TestUse_EmptyStock(t *testing.T) {
	g := NewGovernor(nil, timeutil.UTC)
	inv := NewInventory()

	assert.True(t, g.CanUse(inv, "hint", now))
	res := g.Use(&inv, "hint", now)
	assert.False(t, res.Applied)
	assert.ErrorIs(t, res.Reason, shared.ErrPowerUpNoStock)
	assert.Empty(t, inv.Usage)
}

func TestUse_UnknownPowerUp(t *testing.T) {
	g := NewGovernor(nil, timeutil.UTC)
	var inv Inventory

	res := g.Use(&inv, "time_machine", now)
	assert.False(t, res.Applied)
	assert.True(t, shared.IsNotFound(res.Reason))
	assert.False(t, g.CanUse(inv, "time_machine", now))
}

func TestGrant(t *testing.T) {
	g := NewGovernor(nil, timeutil.UTC)
	var inv Inventory

	require.NoError(t, g.Grant(&inv, "hint", 2))
	require.NoError(t, g.Grant(&inv, "hint", 1))
	assert.Equal(t, 3, inv.Remaining("hint"))

	assert.True(t, shared.IsNotFound(g.Grant(&inv, "nope", 1)))
	assert.ErrorIs(t, g.Grant(&inv, "hint", -1), shared.ErrNegativeValue)
}

func TestSessionState_Merge(t *testing.T) {
	c := DefaultCatalog()
	var s SessionState

	s = s.Merge(effectOf(c["extra_time"]))
	s = s.Merge(effectOf(c["extra_time"]))
	s = s.Merge(effectOf(c["hint"]))
	s = s.Merge(effectOf(c["double_xp"]))
	s = s.Merge(effectOf(c["focus_boost"]))

	assert.Equal(t, 10*time.Minute, s.ExtraTime)
	assert.Equal(t, 1, s.HintsRevealed)
	assert.InDelta(t, 2.0, s.XPMultiplier, 1e-9)
	assert.InDelta(t, 1.25, s.LearningBoost, 1e-9)
}

func TestEffectOf_SetsExactlyOneField(t *testing.T) {
	for id, def := range DefaultCatalog() {
		e := effectOf(def)
		set := 0
		if e.LearningBoost != 0 {
			set++
		}
		if e.ExtraTime != 0 {
			set++
		}
		if e.HintsRevealed != 0 {
			set++
		}
		if e.XPMultiplier != 0 {
			set++
		}
		assert.Equal(t, 1, set, id)
	}
}
