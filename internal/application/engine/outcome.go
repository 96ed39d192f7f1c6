package engine

import (
	"github.com/alem-hub/learner-progression/internal/domain/badge"
	"github.com/alem-hub/learner-progression/internal/domain/leveling"
	"github.com/alem-hub/learner-progression/internal/domain/powerup"
	"github.com/alem-hub/learner-progression/internal/domain/quest"
	"github.com/alem-hub/learner-progression/internal/domain/reward"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/internal/domain/streak"
)

// Outcome describes everything a mutating call changed. It is meant for
// the presentation layer: level-up banners, quest toasts, badge popups.
type Outcome struct {
	LearnerID shared.LearnerID `json:"learner_id"`

	// ExperienceGained - total experience added by the call.
	ExperienceGained int `json:"experience_gained"`

	// PreviousLevel - level before the call.
	PreviousLevel int `json:"previous_level"`

	// Level - breakdown after the call.
	Level leveling.Breakdown `json:"level"`

	// Unlocked - benefits newly unlocked by a level-up.
	Unlocked []leveling.Benefit `json:"unlocked,omitempty"`

	// Rewards - grants applied, in application order.
	Rewards []reward.Reward `json:"rewards,omitempty"`

	QuestProgress   []quest.Result     `json:"quest_progress,omitempty"`
	CompletedQuests []quest.Quest      `json:"completed_quests,omitempty"`
	ExpiredQuests   []string           `json:"expired_quests,omitempty"`
	Milestones      []streak.Milestone `json:"milestones,omitempty"`
	StreakBroken    bool               `json:"streak_broken,omitempty"`
	NewBadges       []badge.Badge      `json:"new_badges,omitempty"`

	// PowerUp - set by UsePowerUp.
	PowerUp *powerup.Result `json:"powerup,omitempty"`

	// Ignored - the activity was not recognized and changed nothing.
	Ignored bool `json:"ignored,omitempty"`
}

func newOutcome(id shared.LearnerID, level leveling.Breakdown) *Outcome {
	return &Outcome{LearnerID: id, PreviousLevel: level.Level, Level: level}
}

// LeveledUp reports whether the call raised the level.
func (o Outcome) LeveledUp() bool {
	return o.Level.Level > o.PreviousLevel
}
