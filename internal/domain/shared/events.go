package shared

import (
	"context"
	"time"
)

// EventType names a domain event.
type EventType string

const (
	EventXPGained          EventType = "progress.xp_gained"
	EventLevelUp           EventType = "progress.level_up"
	EventQuestCompleted    EventType = "quest.completed"
	EventQuestExpired      EventType = "quest.expired"
	EventMilestoneAchieved EventType = "streak.milestone_achieved"
	EventStreakBroken      EventType = "streak.broken"
	EventBadgeEarned       EventType = "badge.earned"
	EventPowerUpUsed       EventType = "powerup.used"
)

// Event is something that happened to a learner's progression.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]interface{}
}

// EventPublisher delivers events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// EventHandler consumes events.
type EventHandler func(ctx context.Context, event Event) error

// BaseEvent holds the fields common to all events.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent stamps an event for learnerID at the given instant.
// Timestamps come from the caller, never from the wall clock.
func NewBaseEvent(eventType EventType, learnerID string, at time.Time) BaseEvent {
	return BaseEvent{Type: eventType, Timestamp: at, AggregateId: learnerID}
}

// XPGainedEvent is emitted whenever total experience grows.
type XPGainedEvent struct {
	BaseEvent
	Amount   int    `json:"amount"`
	NewTotal int64  `json:"new_total"`
	Source   string `json:"source"`
}

func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// LevelUpEvent is emitted when the resolved level increases.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int      `json:"old_level"`
	NewLevel int      `json:"new_level"`
	Unlocked []string `json:"unlocked,omitempty"`
}

func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"unlocked":  e.Unlocked,
	}
}

// QuestCompletedEvent is emitted once per completed quest.
type QuestCompletedEvent struct {
	BaseEvent
	QuestID  string `json:"quest_id"`
	Category string `json:"category"`
}

func (e QuestCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"quest_id": e.QuestID, "category": e.Category}
}

// QuestExpiredEvent is emitted when a quest's time limit passes.
type QuestExpiredEvent struct {
	BaseEvent
	QuestID string `json:"quest_id"`
}

func (e QuestExpiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"quest_id": e.QuestID}
}

// MilestoneAchievedEvent is emitted once per streak milestone.
type MilestoneAchievedEvent struct {
	BaseEvent
	Days int `json:"days"`
}

func (e MilestoneAchievedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"days": e.Days}
}

// StreakBrokenEvent is emitted when a running streak resets to zero.
type StreakBrokenEvent struct {
	BaseEvent
	PreviousStreak int `json:"previous_streak"`
}

func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"previous_streak": e.PreviousStreak}
}

// BadgeEarnedEvent is emitted once per badge.
type BadgeEarnedEvent struct {
	BaseEvent
	BadgeID string `json:"badge_id"`
	Rarity  string `json:"rarity"`
}

func (e BadgeEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"badge_id": e.BadgeID, "rarity": e.Rarity}
}

// PowerUpUsedEvent is emitted after a successful power-up use.
type PowerUpUsedEvent struct {
	BaseEvent
	PowerUpID string `json:"powerup_id"`
	Effect    string `json:"effect"`
	Remaining int    `json:"remaining"`
}

func (e PowerUpUsedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"powerup_id": e.PowerUpID,
		"effect":     e.Effect,
		"remaining":  e.Remaining,
	}
}
