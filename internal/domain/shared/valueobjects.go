package shared

import (
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID VALUE OBJECTS
// ═══════════════════════════════════════════════════════════════════════════

// LearnerID identifies a learner. Any non-blank string is accepted.
type LearnerID string

// IsValid reports whether the ID is non-blank.
func (l LearnerID) IsValid() bool {
	return strings.TrimSpace(string(l)) != ""
}

// String returns the string representation.
func (l LearnerID) String() string {
	return string(l)
}

// NewLearnerID creates a LearnerID with validation.
func NewLearnerID(id string) (LearnerID, error) {
	l := LearnerID(strings.TrimSpace(id))
	if !l.IsValid() {
		return "", ErrInvalidLearnerID
	}
	return l, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// RARITY
// ═══════════════════════════════════════════════════════════════════════════

// Rarity is a display tag on rewards and badges.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid checks that the rarity is one of the known tags.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	default:
		return false
	}
}

// Weight orders rarities from common (1) to legendary (4).
func (r Rarity) Weight() int {
	switch r {
	case RarityRare:
		return 2
	case RarityEpic:
		return 3
	case RarityLegendary:
		return 4
	default:
		return 1
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// TIME
// ═══════════════════════════════════════════════════════════════════════════

// Clock supplies the current instant. The engine never reads the system
// clock directly; hosts pass SystemClock and tests pass FixedClock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now implements Clock.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// TimeRange is a half-open interval [From, To).
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks that From is not after To.
func (t TimeRange) IsValid() bool {
	return !t.From.After(t.To)
}

// Duration returns the length of the range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains reports whether tm falls within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return !tm.Before(t.From) && tm.Before(t.To)
}

// NewTimeRange creates a validated TimeRange.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	r := TimeRange{From: from, To: to}
	if !r.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "from is after to")
	}
	return r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// SCORES
// ═══════════════════════════════════════════════════════════════════════════

// Accuracy is a fraction of correct answers in [0, 1].
type Accuracy float64

// IsValid checks the [0, 1] bounds.
func (a Accuracy) IsValid() bool {
	return a >= 0 && a <= 1
}

// Clamp returns the accuracy limited to [0, 1].
func (a Accuracy) Clamp() Accuracy {
	switch {
	case a < 0:
		return 0
	case a > 1:
		return 1
	default:
		return a
	}
}

// Difficulty is a problem difficulty rating, 0 meaning unrated.
type Difficulty int

// MaxDifficulty is the top of the difficulty scale.
const MaxDifficulty Difficulty = 10

// IsValid checks the [0, MaxDifficulty] bounds.
func (d Difficulty) IsValid() bool {
	return d >= 0 && d <= MaxDifficulty
}
