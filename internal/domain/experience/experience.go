// Package experience computes the experience earned by a single activity.
package experience

import (
	"math"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
)

// Base amounts per activity kind.
const (
	ProblemSolvedXP     = 10
	TopicCompletedXP    = 50
	DailyGoalAchievedXP = 25
	StreakDayXP         = 5
	QuizPerfectXP       = 30
	HelpFriendXP        = 15
	QuestCompletedXP    = 100
)

// MaxBase caps the base amount of a single activity. Larger quest_xp or
// streak_days values are clamped, which keeps the bonus products in range.
const MaxBase = math.MaxInt32

// Bonus thresholds. Both are strict: exactly 0.9 accuracy or difficulty 7
// earn no bonus.
const (
	AccuracyBonusThreshold   = 0.9
	DifficultyBonusThreshold = 7
)

// Base returns the experience an activity is worth before bonuses.
// Kinds that earn nothing return 0.
func Base(a activity.Activity) int {
	switch v := a.(type) {
	case activity.ProblemSolved:
		return ProblemSolvedXP
	case activity.TopicCompleted:
		return TopicCompletedXP
	case activity.DailyGoalAchieved:
		return DailyGoalAchievedXP
	case activity.StreakMilestone:
		if v.Days < 0 {
			return 0
		}
		if v.Days > MaxBase/StreakDayXP {
			return MaxBase
		}
		return v.Days * StreakDayXP
	case activity.QuizPerfect:
		return QuizPerfectXP
	case activity.HelpFriend:
		return HelpFriendXP
	case activity.QuestCompleted:
		if v.QuestXP != nil {
			return clamp(*v.QuestXP)
		}
		return QuestCompletedXP
	case activity.StudySession, activity.StreakUpdated, activity.Unrecognized:
		return 0
	default:
		return 0
	}
}

// Award returns the experience for a: the base amount times 1.5 when
// accuracy is above 0.9, times a further 1.3 when difficulty is above 7,
// floored. The arithmetic is done on integers so 10*1.5*1.3 is exactly 19.
func Award(a activity.Activity) int {
	base := Base(a)
	if base == 0 {
		return 0
	}

	d := a.Info()
	num, den := int64(base), int64(1)
	if d.Graded && d.Accuracy > AccuracyBonusThreshold {
		num *= 3
		den *= 2
	}
	if d.Difficulty > DifficultyBonusThreshold {
		num *= 13
		den *= 10
	}
	return int(num / den)
}

func clamp(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxBase:
		return MaxBase
	}
	return n
}

// Granted returns the experience carried by an xp reward. The amount was
// fixed when the reward was defined, so no activity bonus applies.
func Granted(amount int) int {
	if amount < 0 {
		return 0
	}
	return amount
}
