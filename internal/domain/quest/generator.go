package quest

import (
	"fmt"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/reward"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/pkg/timeutil"
)

// Level gates for generated quests.
const (
	HardQuestMinLevel       = 5
	WeeklyChallengeMinLevel = 7
)

// Snapshot is the slice of learner state quest generation looks at.
type Snapshot struct {
	// Streak - current streak length in days.
	Streak int

	// FocusSubject - subject the learner studied most recently, if any.
	FocusSubject string
}

// Generator builds daily and weekly quest sets from fixed templates.
// Quest ids embed the calendar day or ISO week, so generating twice in the
// same period yields the same ids.
type Generator struct {
	Calendar timeutil.Calendar
}

// NewGenerator returns a Generator partitioning days in cal.
func NewGenerator(cal timeutil.Calendar) Generator {
	return Generator{Calendar: cal}
}

// DailyID returns the id of a daily template instance for the day of now.
func (g Generator) DailyID(template string, now time.Time) string {
	return fmt.Sprintf("daily:%s:%s", g.Calendar.DayKey(now), template)
}

// WeeklyID returns the id of a weekly template instance for the week of now.
func (g Generator) WeeklyID(template string, now time.Time) string {
	return fmt.Sprintf("weekly:%s:%s", g.Calendar.WeekKey(now), template)
}

// GenerateDaily returns the day's quests. A time quest and an accuracy
// quest are always included; a hard quest from level 5; a streak keeper
// when a streak is running; a subject quest when a focus subject is known.
func (g Generator) GenerateDaily(level int, snap Snapshot, now time.Time) []Quest {
	deadline := g.Calendar.EndOfDay(now)
	mk := func(template, title string, difficulty int, objs []Objective, rewards []reward.Reward) Quest {
		return Quest{
			ID:           g.DailyID(template, now),
			Title:        title,
			Category:     CategoryDaily,
			Difficulty:   difficulty,
			Objectives:   objs,
			Rewards:      rewards,
			Requirements: Requirements{TimeLimit: &deadline},
			CreatedAt:    now,
		}
	}

	quests := []Quest{
		mk("time", "Study for 30 minutes", 1,
			[]Objective{{Type: ObjectiveStudyTime, Target: 30, Description: "Study 30 minutes"}},
			[]reward.Reward{reward.XP(50), reward.Coins(10)}),
		mk("accuracy", "Sharp shooter", 2,
			[]Objective{{
				Type:        ObjectiveAccuracy,
				Target:      5,
				Description: "Answer 5 problems with at least 80% accuracy",
				Criteria:    []Criterion{MinAccuracy(0.8)},
			}},
			[]reward.Reward{reward.XP(75), reward.Coins(15)}),
	}

	if level >= HardQuestMinLevel {
		hard := mk("hard", "Tough nut", 4,
			[]Objective{{
				Type:        ObjectiveProblemsSolved,
				Target:      3,
				Description: "Solve 3 problems of difficulty 7 or more",
				Criteria:    []Criterion{MinDifficulty(7)},
			}},
			[]reward.Reward{reward.XP(120), reward.Item("focus_boost", 1)})
		hard.Requirements.MinLevel = HardQuestMinLevel
		quests = append(quests, hard)
	}

	if snap.Streak > 0 {
		quests = append(quests, mk("streak", "Keep the streak alive", 1,
			[]Objective{{
				Type:        ObjectiveStreak,
				Target:      snap.Streak + 1,
				Description: fmt.Sprintf("Reach a %d-day streak", snap.Streak+1),
			}},
			[]reward.Reward{reward.XP(30), reward.Coins(5)}))
	}

	if snap.FocusSubject != "" {
		quests = append(quests, mk("subject", "Deep dive: "+snap.FocusSubject, 2,
			[]Objective{{
				Type:        ObjectiveProblemsSolved,
				Target:      5,
				Description: "Solve 5 problems in " + snap.FocusSubject,
				Criteria:    []Criterion{Subject(snap.FocusSubject)},
			}},
			[]reward.Reward{reward.XP(60), reward.Item("hint", 1)}))
	}

	return quests
}

// GenerateWeekly returns the ISO week's quests. The challenge quest is
// added from level 7.
func (g Generator) GenerateWeekly(level int, now time.Time) []Quest {
	deadline := g.Calendar.EndOfWeek(now)
	mk := func(template, title string, difficulty int, objs []Objective, rewards []reward.Reward) Quest {
		return Quest{
			ID:           g.WeeklyID(template, now),
			Title:        title,
			Category:     CategoryWeekly,
			Difficulty:   difficulty,
			Objectives:   objs,
			Rewards:      rewards,
			Requirements: Requirements{TimeLimit: &deadline},
			CreatedAt:    now,
		}
	}

	quests := []Quest{
		mk("marathon", "Study marathon", 3,
			[]Objective{{Type: ObjectiveStudyTime, Target: 300, Description: "Study 5 hours this week"}},
			[]reward.Reward{reward.XP(300), reward.Coins(50)}),
		mk("explorer", "Explorer", 3,
			[]Objective{
				{Type: ObjectiveTopicCompletion, Target: 3, Description: "Complete 3 topics"},
				{
					Type:        ObjectiveAccuracy,
					Target:      10,
					Description: "Answer 10 problems with at least 90% accuracy",
					Criteria:    []Criterion{MinAccuracy(0.9)},
				},
			},
			[]reward.Reward{reward.XP(400), reward.Item("hint", 3), reward.Title("Explorer", shared.RarityRare)}),
	}

	if level >= WeeklyChallengeMinLevel {
		challenge := mk("challenge", "Weekly challenge", 5,
			[]Objective{{
				Type:        ObjectiveProblemsSolved,
				Target:      20,
				Description: "Solve 20 problems of difficulty 8 or more",
				Criteria:    []Criterion{MinDifficulty(8)},
			}},
			[]reward.Reward{reward.XP(600), reward.Coins(100), reward.Item("double_xp", 1), reward.Title("Challenger", shared.RarityEpic)})
		challenge.Requirements.MinLevel = WeeklyChallengeMinLevel
		quests = append(quests, challenge)
	}

	return quests
}
