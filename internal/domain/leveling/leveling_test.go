package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredExperience_Values(t *testing.T) {
	tests := []struct {
		level int
		want  int64
	}{
		{0, 100},
		{1, 100},
		{2, 150},
		{3, 225},
		{4, 337},
		{5, 506},
		{6, 759},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiredExperience(tt.level), "level %d", tt.level)
	}
}

func TestRequiredExperience_StrictlyIncreasing(t *testing.T) {
	for n := 1; n < 120; n++ {
		a, b := RequiredExperience(n), RequiredExperience(n+1)
		if b == a {
			// Saturated at MaxInt64.
			break
		}
		assert.Greater(t, b, a, "level %d", n)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		level     int
		current   int64
		toNext    int64
		nBenefits int
	}{
		{"zero", 0, 1, 0, 100, 1},
		{"inside first level", 19, 1, 19, 100, 1},
		{"just below 100", 99, 1, 99, 100, 1},
		{"exactly 100", 100, 2, 0, 150, 1},
		{"exactly 250", 250, 3, 0, 225, 2},
		{"level 5", 100 + 150 + 225 + 337, 5, 0, 506, 3},
		{"negative clamps", -5, 1, 0, 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Resolve(tt.total)
			assert.Equal(t, tt.level, b.Level)
			assert.Equal(t, tt.current, b.CurrentExperience)
			assert.Equal(t, tt.toNext, b.ExperienceToNextLevel)
			assert.Len(t, b.UnlockedBenefits, tt.nBenefits)
		})
	}
}

func TestResolve_TotalIsPreserved(t *testing.T) {
	b := Resolve(1234)
	var sum int64
	for l := 1; l < b.Level; l++ {
		sum += RequiredExperience(l)
	}
	assert.Equal(t, int64(1234), sum+b.CurrentExperience)
	assert.Equal(t, int64(1234), b.TotalExperience)
}

func TestNewlyUnlocked(t *testing.T) {
	got := NewlyUnlocked(2, 5)
	assert.Equal(t, []Benefit{{3, "power_ups"}, {5, "hard_quests"}}, got)
	assert.Empty(t, NewlyUnlocked(5, 5))
}

func TestBreakdown_Progress(t *testing.T) {
	assert.Zero(t, Resolve(0).Progress())
	assert.InDelta(t, 0.5, Resolve(50).Progress(), 1e-9)
	assert.InDelta(t, 0.1, Resolve(115).Progress(), 1e-9)
}
