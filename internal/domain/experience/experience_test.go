package experience

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
)

func graded(acc float64, diff int) activity.Details {
	return activity.Details{Accuracy: acc, Graded: true, Difficulty: diff}
}

func intPtr(v int) *int { return &v }

func TestAward_BaseAmounts(t *testing.T) {
	tests := []struct {
		name string
		a    activity.Activity
		want int
	}{
		{"problem solved", activity.ProblemSolved{}, 10},
		{"topic completed", activity.TopicCompleted{}, 50},
		{"daily goal", activity.DailyGoalAchieved{}, 25},
		{"streak milestone", activity.StreakMilestone{Days: 7}, 35},
		{"quiz perfect", activity.QuizPerfect{}, 30},
		{"help friend", activity.HelpFriend{}, 15},
		{"quest default", activity.QuestCompleted{}, 100},
		{"quest override", activity.QuestCompleted{QuestXP: intPtr(40)}, 40},
		{"quest zero override", activity.QuestCompleted{QuestXP: intPtr(0)}, 0},
		{"study session", activity.StudySession{}, 0},
		{"streak updated", activity.StreakUpdated{Days: 3}, 0},
		{"unrecognized", activity.Unrecognized{Type: "dance"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Award(tt.a))
		})
	}
}

func TestAward_Bonuses(t *testing.T) {
	tests := []struct {
		name string
		d    activity.Details
		want int
	}{
		{"both bonuses compose", graded(0.95, 8), 19},
		{"accuracy only", graded(0.95, 5), 15},
		{"difficulty only", graded(0.5, 8), 13},
		{"accuracy at threshold", graded(0.9, 8), 13},
		{"difficulty at threshold", graded(0.95, 7), 15},
		{"ungraded ignores accuracy", activity.Details{Accuracy: 1, Difficulty: 9}, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Award(activity.ProblemSolved{Details: tt.d}))
		})
	}
}

func TestAward_TopicWithBothBonuses(t *testing.T) {
	// 50 * 1.5 * 1.3 = 97.5
	assert.Equal(t, 97, Award(activity.TopicCompleted{Details: graded(1, 10)}))
}

func TestAward_HugeInputsAreClamped(t *testing.T) {
	huge := math.MaxInt64/2 + 10
	assert.Equal(t, MaxBase, Award(activity.QuestCompleted{QuestXP: &huge}))
	assert.Equal(t, MaxBase, Award(activity.StreakMilestone{Days: huge}))

	// Bonuses apply on top of the cap without overflowing.
	got := Award(activity.QuestCompleted{Details: graded(1, 10), QuestXP: &huge})
	assert.Equal(t, int(int64(MaxBase)*39/20), got)
	assert.Positive(t, got)
}

func TestGranted(t *testing.T) {
	assert.Equal(t, 75, Granted(75))
	assert.Equal(t, 0, Granted(-3))
}
