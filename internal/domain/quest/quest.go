// Package quest tracks quests made of ordered objectives and advances them
// from incoming activities. Only one objective is active at a time, and a
// completed or expired quest never changes again.
package quest

import (
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
	"github.com/alem-hub/learner-progression/internal/domain/reward"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Category groups quests by cadence.
type Category string

const (
	CategoryDaily   Category = "daily"
	CategoryWeekly  Category = "weekly"
	CategoryMonthly Category = "monthly"
	CategorySpecial Category = "special"
	CategoryStory   Category = "story"
)

// ObjectiveType selects how an objective accumulates progress.
type ObjectiveType string

const (
	ObjectiveStudyTime       ObjectiveType = "study_time"
	ObjectiveProblemsSolved  ObjectiveType = "problems_solved"
	ObjectiveStreak          ObjectiveType = "streak"
	ObjectiveAccuracy        ObjectiveType = "accuracy"
	ObjectiveTopicCompletion ObjectiveType = "topic_completion"
	ObjectiveCustom          ObjectiveType = "custom"
)

// Objective is one measurable step of a quest.
type Objective struct {
	// Type - how progress is counted.
	Type ObjectiveType `json:"type"`

	// Description - presentation text.
	Description string `json:"description,omitempty"`

	// Target - value at which the objective completes.
	Target int `json:"target"`

	// Current - accumulated progress, never above Target.
	Current int `json:"current"`

	// Completed - set once Current reaches Target.
	Completed bool `json:"completed"`

	// Criteria - filters an activity must pass, AND-combined.
	Criteria []Criterion `json:"criteria,omitempty"`
}

// Requirements gate whether a quest accepts progress.
type Requirements struct {
	MinLevel      int        `json:"min_level,omitempty"`
	TimeLimit     *time.Time `json:"time_limit,omitempty"`
	Prerequisites []string   `json:"prerequisites,omitempty"`
}

// Status is the progress record of a quest.
type Status struct {
	Started          bool       `json:"started"`
	Completed        bool       `json:"completed"`
	Expired          bool       `json:"expired,omitempty"`
	CurrentObjective int        `json:"current_objective"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ExpiredAt        *time.Time `json:"expired_at,omitempty"`
}

// Quest is a sequence of objectives with rewards on completion.
type Quest struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Category     Category        `json:"category"`
	Difficulty   int             `json:"difficulty"`
	Objectives   []Objective     `json:"objectives"`
	Rewards      []reward.Reward `json:"rewards,omitempty"`
	Requirements Requirements    `json:"requirements"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Result reports what an Apply call changed. Reason is set when the quest
// rejected the activity for a rule reason (not found, completed, expired,
// locked); it is informational and never a failure.
type Result struct {
	QuestID            string `json:"quest_id"`
	Progressed         bool   `json:"progressed"`
	ObjectiveCompleted bool   `json:"objective_completed,omitempty"`
	QuestCompleted     bool   `json:"quest_completed,omitempty"`
	Reason             error  `json:"-"`
}

// ══════════════════════════════════════════════════════════════════════════════
// QUEST
// ══════════════════════════════════════════════════════════════════════════════

// Validate checks the quest has an id and usable objectives.
func (q Quest) Validate() error {
	if q.ID == "" || len(q.Objectives) == 0 {
		return shared.ErrInvalidQuest
	}
	for _, o := range q.Objectives {
		if o.Target <= 0 {
			return shared.NewDomainError("quest", "Validate", shared.ErrValueOutOfRange, "objective target must be positive")
		}
	}
	for _, r := range q.Rewards {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsFinished reports whether the quest is completed or expired.
func (q Quest) IsFinished() bool {
	return q.Status.Completed || q.Status.Expired
}

// ActiveObjective returns the objective currently accepting progress.
func (q Quest) ActiveObjective() (Objective, bool) {
	if q.IsFinished() || q.Status.CurrentObjective >= len(q.Objectives) {
		return Objective{}, false
	}
	return q.Objectives[q.Status.CurrentObjective], true
}

// Progress returns the share of objectives completed, in [0, 1].
func (q Quest) Progress() float64 {
	if len(q.Objectives) == 0 {
		return 0
	}
	done := 0
	for _, o := range q.Objectives {
		if o.Completed {
			done++
		}
	}
	return float64(done) / float64(len(q.Objectives))
}

// ExpiresBefore reports whether the time limit has passed at now.
func (q Quest) ExpiresBefore(now time.Time) bool {
	return q.Requirements.TimeLimit != nil && now.After(*q.Requirements.TimeLimit)
}

// expire marks an unfinished quest as expired. It returns false when the
// quest was already finished.
func (q *Quest) expire(now time.Time) bool {
	if q.IsFinished() {
		return false
	}
	q.Status.Expired = true
	q.Status.ExpiredAt = &now
	return true
}

// Apply offers a to the active objective. Requirements other than the time
// limit are checked by Log, which knows the learner's level and history.
func (q *Quest) Apply(a activity.Activity) Result {
	res := Result{QuestID: q.ID}
	switch {
	case q.Status.Completed:
		res.Reason = shared.ErrQuestCompleted
		return res
	case q.Status.Expired:
		res.Reason = shared.ErrQuestExpired
		return res
	}

	at := a.Info().At
	if q.ExpiresBefore(at) {
		q.expire(at)
		res.Reason = shared.ErrQuestExpired
		return res
	}
	if activity.IsUnrecognized(a) {
		return res
	}

	idx := q.Status.CurrentObjective
	if idx >= len(q.Objectives) {
		return res
	}
	obj := &q.Objectives[idx]
	if !obj.advance(a) {
		return res
	}

	res.Progressed = true
	if !q.Status.Started {
		q.Status.Started = true
		q.Status.StartedAt = &at
	}
	if !obj.Completed {
		return res
	}

	res.ObjectiveCompleted = true
	if idx+1 < len(q.Objectives) {
		q.Status.CurrentObjective = idx + 1
		return res
	}
	q.Status.Completed = true
	q.Status.CompletedAt = &at
	res.QuestCompleted = true
	return res
}

// ══════════════════════════════════════════════════════════════════════════════
// OBJECTIVE
// ══════════════════════════════════════════════════════════════════════════════

// increment returns how much a moves an objective of type t, and false when
// a is irrelevant to it. Streak objectives return the absolute length.
func increment(t ObjectiveType, a activity.Activity) (int, bool) {
	d := a.Info()
	switch t {
	case ObjectiveStudyTime:
		if d.Minutes <= 0 || !a.Kind().Learning() {
			return 0, false
		}
		return d.Minutes, true
	case ObjectiveProblemsSolved:
		_, ok := a.(activity.ProblemSolved)
		return 1, ok
	case ObjectiveAccuracy:
		if !d.Graded || !a.Kind().Learning() {
			return 0, false
		}
		return 1, true
	case ObjectiveTopicCompletion:
		_, ok := a.(activity.TopicCompleted)
		return 1, ok
	case ObjectiveStreak:
		s, ok := a.(activity.StreakUpdated)
		return s.Days, ok
	case ObjectiveCustom:
		return 1, a.Kind().Known()
	default:
		return 0, false
	}
}

// advance applies a to the objective and reports whether Current changed.
func (o *Objective) advance(a activity.Activity) bool {
	if o.Completed {
		return false
	}
	n, ok := increment(o.Type, a)
	if !ok || !matchAll(o.Criteria, a) {
		return false
	}

	next := o.Current + n
	if o.Type == ObjectiveStreak {
		// Streak objectives follow the streak length and never go back.
		if n <= o.Current {
			return false
		}
		next = n
	}
	if next >= o.Target {
		next = o.Target
		o.Completed = true
	}
	if next == o.Current && !o.Completed {
		return false
	}
	o.Current = next
	return true
}
