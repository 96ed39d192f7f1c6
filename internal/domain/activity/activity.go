// Package activity defines the closed set of learner actions the engine
// understands. Every raw event is decoded into exactly one Activity variant;
// callers switch over the concrete types.
package activity

import (
	"time"
)

// Kind is the wire name of an activity.
type Kind string

const (
	KindProblemSolved     Kind = "problem_solved"
	KindTopicCompleted    Kind = "topic_completed"
	KindDailyGoalAchieved Kind = "daily_goal_achieved"
	KindStreakMilestone   Kind = "streak_milestone"
	KindQuizPerfect       Kind = "quiz_perfect"
	KindHelpFriend        Kind = "help_friend"
	KindQuestCompleted    Kind = "quest_completed"
	KindStudySession      Kind = "study_session"

	// KindStreakUpdated is raised by the engine itself after the streak
	// tracker runs, so quests with a streak objective can follow it. It is
	// never decoded from an Event.
	KindStreakUpdated Kind = "streak_updated"
)

// Known reports whether k is an activity callers may raise.
func (k Kind) Known() bool {
	switch k {
	case KindProblemSolved, KindTopicCompleted, KindDailyGoalAchieved,
		KindStreakMilestone, KindQuizPerfect, KindHelpFriend,
		KindQuestCompleted, KindStudySession:
		return true
	default:
		return false
	}
}

// Learning reports whether an activity of this kind counts as studying for
// the day. Rewards routed back as activities do not.
func (k Kind) Learning() bool {
	switch k {
	case KindProblemSolved, KindTopicCompleted, KindDailyGoalAchieved,
		KindQuizPerfect, KindStudySession:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DETAILS
// ══════════════════════════════════════════════════════════════════════════════

// Details is the context shared by every activity variant.
type Details struct {
	// Subject - e.g. "math". Empty when not applicable.
	Subject string `json:"subject,omitempty"`

	// Topic - e.g. "fractions".
	Topic string `json:"topic,omitempty"`

	// Difficulty - problem rating, 0 when unrated.
	Difficulty int `json:"difficulty,omitempty"`

	// Accuracy - fraction of correct answers; meaningful only when Graded.
	Accuracy float64 `json:"accuracy,omitempty"`

	// Graded - whether an accuracy was reported.
	Graded bool `json:"graded,omitempty"`

	// Minutes - time spent, in whole minutes.
	Minutes int `json:"minutes,omitempty"`

	// At - when the learner performed the action.
	At time.Time `json:"at"`
}

// Info returns the details. Promoted to every variant.
func (d Details) Info() Details { return d }

// Duration returns Minutes as a time.Duration.
func (d Details) Duration() time.Duration {
	return time.Duration(d.Minutes) * time.Minute
}

func (Details) sealed() {}

// ══════════════════════════════════════════════════════════════════════════════
// VARIANTS
// ══════════════════════════════════════════════════════════════════════════════

// Activity is implemented only by the variants in this package.
type Activity interface {
	Kind() Kind
	Info() Details
	sealed()
}

// ProblemSolved - one problem answered correctly.
type ProblemSolved struct{ Details }

// TopicCompleted - a topic finished.
type TopicCompleted struct{ Details }

// DailyGoalAchieved - the learner hit their daily goal.
type DailyGoalAchieved struct{ Details }

// StreakMilestone - a streak threshold reached, rewarded per day of streak.
type StreakMilestone struct {
	Details
	Days int `json:"days"`
}

// QuizPerfect - a quiz finished without mistakes.
type QuizPerfect struct{ Details }

// HelpFriend - the learner helped someone else.
type HelpFriend struct {
	Details
	FriendID string `json:"friend_id,omitempty"`
}

// QuestCompleted - a quest finished. QuestXP overrides the default award.
type QuestCompleted struct {
	Details
	QuestID string `json:"quest_id,omitempty"`
	QuestXP *int   `json:"quest_xp,omitempty"`
}

// StudySession - a block of study time.
type StudySession struct{ Details }

// StreakUpdated - the current streak length after a recorded day.
type StreakUpdated struct {
	Details
	Days int `json:"days"`
}

// Unrecognized - any event type this package does not know. It earns
// nothing and matches no criteria.
type Unrecognized struct {
	Details
	Type string `json:"type"`
}

func (ProblemSolved) Kind() Kind     { return KindProblemSolved }
func (TopicCompleted) Kind() Kind    { return KindTopicCompleted }
func (DailyGoalAchieved) Kind() Kind { return KindDailyGoalAchieved }
func (StreakMilestone) Kind() Kind   { return KindStreakMilestone }
func (QuizPerfect) Kind() Kind       { return KindQuizPerfect }
func (HelpFriend) Kind() Kind        { return KindHelpFriend }
func (QuestCompleted) Kind() Kind    { return KindQuestCompleted }
func (StudySession) Kind() Kind      { return KindStudySession }
func (StreakUpdated) Kind() Kind     { return KindStreakUpdated }
func (u Unrecognized) Kind() Kind    { return Kind(u.Type) }

// IsUnrecognized reports whether a is the Unrecognized variant.
func IsUnrecognized(a Activity) bool {
	_, ok := a.(Unrecognized)
	return ok
}
