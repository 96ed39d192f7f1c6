// Package powerup gates consumable power-ups behind per-session, per-day and
// cooldown limits. Using one never mutates caller state: it returns an
// Effect value that the caller merges into its own SessionState.
package powerup

import (
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// EffectType selects which session field a power-up sets.
type EffectType string

const (
	EffectLearningBoost EffectType = "learning_boost"
	EffectTimeExtension EffectType = "time_extension"
	EffectHintReveal    EffectType = "hint_reveal"
	EffectXPMultiplier  EffectType = "xp_multiplier"
)

// Rules limit how often a power-up may be used.
type Rules struct {
	MaxPerSession int `json:"max_per_session"`
	MaxPerDay     int `json:"max_per_day"`
	// CooldownMinutes - minimum gap between two uses; 0 disables it.
	CooldownMinutes int `json:"cooldown_minutes"`
}

// Cooldown returns the cooldown as a duration.
func (r Rules) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// Definition describes one power-up.
type Definition struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Effect EffectType    `json:"effect"`
	Rules  Rules         `json:"rules"`
	Rarity shared.Rarity `json:"rarity"`

	// Magnitude - boost factor, minutes of extra time, hints revealed or
	// XP multiplier depending on Effect.
	Magnitude float64 `json:"magnitude"`
}

// Catalog maps power-up ids to definitions.
type Catalog map[string]Definition

// DefaultCatalog returns the built-in power-ups.
func DefaultCatalog() Catalog {
	defs := []Definition{
		{
			ID: "focus_boost", Name: "Focus Boost", Effect: EffectLearningBoost, Magnitude: 1.25,
			Rules: Rules{MaxPerSession: 1, MaxPerDay: 3, CooldownMinutes: 30}, Rarity: shared.RarityRare,
		},
		{
			ID: "extra_time", Name: "Extra Time", Effect: EffectTimeExtension, Magnitude: 5,
			Rules: Rules{MaxPerSession: 2, MaxPerDay: 5, CooldownMinutes: 10}, Rarity: shared.RarityCommon,
		},
		{
			ID: "hint", Name: "Hint", Effect: EffectHintReveal, Magnitude: 1,
			Rules: Rules{MaxPerSession: 3, MaxPerDay: 10}, Rarity: shared.RarityCommon,
		},
		{
			ID: "double_xp", Name: "Double XP", Effect: EffectXPMultiplier, Magnitude: 2,
			Rules: Rules{MaxPerSession: 1, MaxPerDay: 1, CooldownMinutes: 60}, Rarity: shared.RarityEpic,
		},
	}
	c := make(Catalog, len(defs))
	for _, d := range defs {
		c[d.ID] = d
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// EFFECTS
// ══════════════════════════════════════════════════════════════════════════════

// Effect is the outcome of a successful use. Exactly one of the value
// fields is set, matching Type.
type Effect struct {
	Type      EffectType `json:"type"`
	PowerUpID string     `json:"powerup_id"`

	LearningBoost float64       `json:"learning_boost,omitempty"`
	ExtraTime     time.Duration `json:"extra_time,omitempty"`
	HintsRevealed int           `json:"hints_revealed,omitempty"`
	XPMultiplier  float64       `json:"xp_multiplier,omitempty"`
}

// effectOf dispatches on the definition's effect type.
func effectOf(d Definition) Effect {
	e := Effect{Type: d.Effect, PowerUpID: d.ID}
	switch d.Effect {
	case EffectLearningBoost:
		e.LearningBoost = d.Magnitude
	case EffectTimeExtension:
		e.ExtraTime = time.Duration(d.Magnitude * float64(time.Minute))
	case EffectHintReveal:
		e.HintsRevealed = int(d.Magnitude)
	case EffectXPMultiplier:
		e.XPMultiplier = d.Magnitude
	}
	return e
}

// SessionState is the caller-owned view of active effects in a session.
type SessionState struct {
	LearningBoost float64       `json:"learning_boost,omitempty"`
	ExtraTime     time.Duration `json:"extra_time,omitempty"`
	HintsRevealed int           `json:"hints_revealed,omitempty"`
	XPMultiplier  float64       `json:"xp_multiplier,omitempty"`
}

// Merge returns s with e applied. Boosts and multipliers keep the larger
// value; extra time and hints add up.
func (s SessionState) Merge(e Effect) SessionState {
	switch e.Type {
	case EffectLearningBoost:
		if e.LearningBoost > s.LearningBoost {
			s.LearningBoost = e.LearningBoost
		}
	case EffectTimeExtension:
		s.ExtraTime += e.ExtraTime
	case EffectHintReveal:
		s.HintsRevealed += e.HintsRevealed
	case EffectXPMultiplier:
		if e.XPMultiplier > s.XPMultiplier {
			s.XPMultiplier = e.XPMultiplier
		}
	}
	return s
}
