// Package learner holds the per-learner progression aggregate and the
// key-value store contract it is persisted through.
package learner

import (
	"math"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
	"github.com/alem-hub/learner-progression/internal/domain/badge"
	"github.com/alem-hub/learner-progression/internal/domain/leveling"
	"github.com/alem-hub/learner-progression/internal/domain/reward"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

// Stats are counters accumulated from activities. Badge conditions read them.
type Stats struct {
	ProblemsSolved  int `json:"problems_solved"`
	TopicsCompleted int `json:"topics_completed"`
	PerfectQuizzes  int `json:"perfect_quizzes"`
	HelpCount       int `json:"help_count"`
	QuestsCompleted int `json:"quests_completed"`
	StudyMinutes    int `json:"study_minutes"`
}

// Progression is the root record of a learner. Level and its breakdown
// are derived from TotalExperience on every read and never stored.
type Progression struct {
	// LearnerID - owner of this record.
	LearnerID shared.LearnerID `json:"learner_id"`

	// TotalExperience - cumulative experience, never decreasing.
	TotalExperience int64 `json:"total_experience"`

	// Economy - coins, titles and applied grant keys.
	Economy reward.Wallet `json:"economy"`

	// Stats - activity counters.
	Stats Stats `json:"stats"`

	// LastSubject - subject of the latest learning activity.
	LastSubject string `json:"last_subject,omitempty"`

	// UpdatedAt - time of the last mutation.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProgression returns an empty progression for id.
func NewProgression(id shared.LearnerID) Progression {
	return Progression{LearnerID: id}
}

// Level resolves the current level breakdown.
func (p Progression) Level() leveling.Breakdown {
	return leveling.Resolve(p.TotalExperience)
}

// AddExperience adds amount and returns the level before and after.
// Non-positive amounts change nothing. The total saturates at MaxInt64.
func (p *Progression) AddExperience(amount int) (before, after int) {
	before = leveling.LevelOf(p.TotalExperience)
	if amount <= 0 {
		return before, before
	}
	if p.TotalExperience > math.MaxInt64-int64(amount) {
		p.TotalExperience = math.MaxInt64
	} else {
		p.TotalExperience += int64(amount)
	}
	return before, leveling.LevelOf(p.TotalExperience)
}

// Count folds a into the stats counters.
func (p *Progression) Count(a activity.Activity) {
	d := a.Info()
	switch a.(type) {
	case activity.ProblemSolved:
		p.Stats.ProblemsSolved++
	case activity.TopicCompleted:
		p.Stats.TopicsCompleted++
	case activity.QuizPerfect:
		p.Stats.PerfectQuizzes++
	case activity.HelpFriend:
		p.Stats.HelpCount++
	case activity.QuestCompleted:
		p.Stats.QuestsCompleted++
	}
	if a.Kind().Learning() {
		if d.Minutes > 0 {
			p.Stats.StudyMinutes += d.Minutes
		}
		if d.Subject != "" {
			p.LastSubject = d.Subject
		}
	}
}

// BadgeSnapshot builds the state badge conditions evaluate.
func (p Progression) BadgeSnapshot(streak int) badge.Snapshot {
	return badge.Snapshot{
		ProblemsSolved:  p.Stats.ProblemsSolved,
		TopicsCompleted: p.Stats.TopicsCompleted,
		PerfectQuizzes:  p.Stats.PerfectQuizzes,
		QuestsCompleted: p.Stats.QuestsCompleted,
		StudyMinutes:    p.Stats.StudyMinutes,
		Streak:          streak,
		Level:           p.Level().Level,
		HelpCount:       p.Stats.HelpCount,
	}
}

// Validate checks the record's invariants.
func (p Progression) Validate() error {
	if !p.LearnerID.IsValid() {
		return shared.ErrInvalidLearnerID
	}
	if p.TotalExperience < 0 {
		return shared.ErrNegativeExperience
	}
	return nil
}

// View is the read model returned to callers: the stored record plus the
// derived level breakdown.
type View struct {
	Progression Progression        `json:"progression"`
	Level       leveling.Breakdown `json:"level"`
}

// NewView derives the level breakdown for p.
func NewView(p Progression) View {
	return View{Progression: p, Level: p.Level()}
}
