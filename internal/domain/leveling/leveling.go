// Package leveling maps cumulative experience to a level breakdown.
// Everything here is pure: no state, no I/O, no errors.
package leveling

import (
	"math"
	"math/big"
)

// ══════════════════════════════════════════════════════════════════════════════
// CURVE
// ══════════════════════════════════════════════════════════════════════════════

// BaseRequirement is the experience needed to leave level 1.
const BaseRequirement = 100

// RequiredExperience returns floor(100 * 1.5^(level-1)), the experience
// needed to advance from level to level+1. Levels below 1 are treated as 1.
// The value is computed exactly as 100*3^(level-1) / 2^(level-1) and
// saturates at math.MaxInt64.
func RequiredExperience(level int) int64 {
	if level < 1 {
		level = 1
	}
	n := int64(level - 1)
	num := new(big.Int).Exp(big.NewInt(3), big.NewInt(n), nil)
	num.Mul(num, big.NewInt(BaseRequirement))
	num.Rsh(num, uint(n))
	if !num.IsInt64() {
		return math.MaxInt64
	}
	return num.Int64()
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLUTION
// ══════════════════════════════════════════════════════════════════════════════

// Breakdown is the derived view of a total experience amount.
type Breakdown struct {
	// Level - current level, at least 1.
	Level int `json:"level"`

	// CurrentExperience - experience earned inside the current level.
	CurrentExperience int64 `json:"current_experience"`

	// ExperienceToNextLevel - requirement of the current level.
	ExperienceToNextLevel int64 `json:"experience_to_next_level"`

	// TotalExperience - the input amount.
	TotalExperience int64 `json:"total_experience"`

	// UnlockedBenefits - features unlocked at or below Level.
	UnlockedBenefits []Benefit `json:"unlocked_benefits"`
}

// Progress returns the fraction of the current level completed, in [0, 1).
func (b Breakdown) Progress() float64 {
	if b.ExperienceToNextLevel <= 0 {
		return 0
	}
	return float64(b.CurrentExperience) / float64(b.ExperienceToNextLevel)
}

// Resolve returns the level breakdown for total experience. A negative
// total is a caller bug and resolves like zero; callers reject it earlier.
func Resolve(total int64) Breakdown {
	if total < 0 {
		total = 0
	}

	level := 1
	remaining := total
	for {
		req := RequiredExperience(level)
		if remaining < req {
			break
		}
		remaining -= req
		level++
	}

	return Breakdown{
		Level:                 level,
		CurrentExperience:     remaining,
		ExperienceToNextLevel: RequiredExperience(level),
		TotalExperience:       total,
		UnlockedBenefits:      BenefitsAt(level),
	}
}

// LevelOf is a shortcut for Resolve(total).Level.
func LevelOf(total int64) int {
	return Resolve(total).Level
}

// ══════════════════════════════════════════════════════════════════════════════
// BENEFITS
// ══════════════════════════════════════════════════════════════════════════════

// Benefit is a feature unlocked once a level is reached.
type Benefit struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
}

var benefits = []Benefit{
	{Level: 1, Name: "daily_quests"},
	{Level: 3, Name: "power_ups"},
	{Level: 5, Name: "hard_quests"},
	{Level: 7, Name: "weekly_challenges"},
	{Level: 10, Name: "custom_titles"},
	{Level: 15, Name: "mentor_mode"},
}

// BenefitsAt returns the benefits unlocked at or below level, in level order.
func BenefitsAt(level int) []Benefit {
	out := make([]Benefit, 0, len(benefits))
	for _, b := range benefits {
		if b.Level <= level {
			out = append(out, b)
		}
	}
	return out
}

// NewlyUnlocked returns the benefits unlocked by moving from oldLevel to
// newLevel. It is empty when the level did not increase.
func NewlyUnlocked(oldLevel, newLevel int) []Benefit {
	var out []Benefit
	for _, b := range benefits {
		if b.Level > oldLevel && b.Level <= newLevel {
			out = append(out, b)
		}
	}
	return out
}
