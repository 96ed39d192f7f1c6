// Package badge grants badges whose unlock conditions hold. A learner owns
// each badge at most once.
package badge

import (
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONDITIONS
// ══════════════════════════════════════════════════════════════════════════════

// ConditionKind tags the variant of a Condition.
type ConditionKind string

const (
	ConditionAchievement ConditionKind = "achievement"
	ConditionTimeBased   ConditionKind = "time_based"
	ConditionSocial      ConditionKind = "social"
)

// Metric names an accumulated learner counter.
type Metric string

const (
	MetricProblemsSolved  Metric = "problems_solved"
	MetricTopicsCompleted Metric = "topics_completed"
	MetricPerfectQuizzes  Metric = "perfect_quizzes"
	MetricQuestsCompleted Metric = "quests_completed"
	MetricStudyMinutes    Metric = "study_minutes"
	MetricStreak          Metric = "streak"
	MetricLevel           Metric = "level"
	MetricHelpCount       Metric = "help_count"
)

// Condition is the unlock rule of a badge. Achievement and social
// conditions compare Metric against Threshold; time-based conditions hold
// when a learning activity happens at a local hour in [FromHour, ToHour),
// wrapping past midnight when FromHour > ToHour.
type Condition struct {
	Kind      ConditionKind `json:"kind"`
	Metric    Metric        `json:"metric,omitempty"`
	Threshold int           `json:"threshold,omitempty"`
	FromHour  int           `json:"from_hour,omitempty"`
	ToHour    int           `json:"to_hour,omitempty"`
}

// Snapshot is the learner state badge conditions read.
type Snapshot struct {
	ProblemsSolved  int
	TopicsCompleted int
	PerfectQuizzes  int
	QuestsCompleted int
	StudyMinutes    int
	Streak          int
	Level           int
	HelpCount       int
}

// Value returns the counter for m.
func (s Snapshot) Value(m Metric) int {
	switch m {
	case MetricProblemsSolved:
		return s.ProblemsSolved
	case MetricTopicsCompleted:
		return s.TopicsCompleted
	case MetricPerfectQuizzes:
		return s.PerfectQuizzes
	case MetricQuestsCompleted:
		return s.QuestsCompleted
	case MetricStudyMinutes:
		return s.StudyMinutes
	case MetricStreak:
		return s.Streak
	case MetricLevel:
		return s.Level
	case MetricHelpCount:
		return s.HelpCount
	default:
		return 0
	}
}

func inWindow(hour, from, to int) bool {
	if from <= to {
		return hour >= from && hour < to
	}
	return hour >= from || hour < to
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

// Badge is a catalog entry, or an owned badge once EarnedAt is set.
type Badge struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Rarity      shared.Rarity `json:"rarity"`
	Condition   Condition     `json:"condition"`
	EarnedAt    *time.Time    `json:"earned_at,omitempty"`
}

// Set is the badges a learner owns, keyed by id.
type Set struct {
	Earned map[string]Badge `json:"earned"`
}

// NewSet returns an empty set.
func NewSet() Set {
	return Set{Earned: map[string]Badge{}}
}

// Has reports whether id is owned.
func (s Set) Has(id string) bool {
	_, ok := s.Earned[id]
	return ok
}

// Len returns the number of owned badges.
func (s Set) Len() int {
	return len(s.Earned)
}

// add stores b stamped with now unless already owned.
func (s *Set) add(b Badge, now time.Time) (Badge, bool) {
	if s.Earned == nil {
		s.Earned = map[string]Badge{}
	}
	if owned, ok := s.Earned[b.ID]; ok {
		return owned, false
	}
	stamp := now
	b.EarnedAt = &stamp
	s.Earned[b.ID] = b
	return b, true
}

// Catalog is the ordered list of grantable badges.
type Catalog []Badge

// Find returns the catalog entry for id.
func (c Catalog) Find(id string) (Badge, bool) {
	for _, b := range c {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

func achievement(id, name string, rarity shared.Rarity, m Metric, threshold int) Badge {
	return Badge{ID: id, Name: name, Rarity: rarity, Condition: Condition{Kind: ConditionAchievement, Metric: m, Threshold: threshold}}
}

func timeBased(id, name string, rarity shared.Rarity, from, to int) Badge {
	return Badge{ID: id, Name: name, Rarity: rarity, Condition: Condition{Kind: ConditionTimeBased, FromHour: from, ToHour: to}}
}

func social(id, name string, rarity shared.Rarity, threshold int) Badge {
	return Badge{ID: id, Name: name, Rarity: rarity, Condition: Condition{Kind: ConditionSocial, Metric: MetricHelpCount, Threshold: threshold}}
}

// DefaultCatalog returns the built-in badges.
func DefaultCatalog() Catalog {
	return Catalog{
		achievement("first_steps", "First Steps", shared.RarityCommon, MetricProblemsSolved, 1),
		achievement("problem_crusher", "Problem Crusher", shared.RarityEpic, MetricProblemsSolved, 100),
		achievement("topic_explorer", "Topic Explorer", shared.RarityRare, MetricTopicsCompleted, 5),
		achievement("perfectionist", "Perfectionist", shared.RarityRare, MetricPerfectQuizzes, 3),
		achievement("quest_hunter", "Quest Hunter", shared.RarityRare, MetricQuestsCompleted, 10),
		achievement("streak_week", "Week Warrior", shared.RarityRare, MetricStreak, 7),
		achievement("streak_legend", "Streak Legend", shared.RarityLegendary, MetricStreak, 30),
		achievement("level_5", "Rising Star", shared.RarityRare, MetricLevel, 5),
		achievement("level_10", "Veteran", shared.RarityEpic, MetricLevel, 10),
		timeBased("night_owl", "Night Owl", shared.RarityRare, 0, 5),
		timeBased("early_bird", "Early Bird", shared.RarityRare, 5, 7),
		social("helping_hand", "Helping Hand", shared.RarityCommon, 1),
		social("mentor", "Mentor", shared.RarityEpic, 20),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine evaluates the catalog against learner state.
type Engine struct {
	Catalog  Catalog
	Calendar timeutil.Calendar
}

// NewEngine returns an Engine over catalog, reading local hours in cal.
func NewEngine(catalog Catalog, cal timeutil.Calendar) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Engine{Catalog: catalog, Calendar: cal}
}

// holds evaluates c for the snapshot and the current activity.
func (e *Engine) holds(c Condition, snap Snapshot, a activity.Activity, now time.Time) bool {
	switch c.Kind {
	case ConditionAchievement, ConditionSocial:
		return c.Threshold > 0 && snap.Value(c.Metric) >= c.Threshold
	case ConditionTimeBased:
		if a == nil || !a.Kind().Learning() {
			return false
		}
		at := a.Info().At
		if at.IsZero() {
			at = now
		}
		return inWindow(e.Calendar.Hour(at), c.FromHour, c.ToHour)
	default:
		return false
	}
}

// Evaluate grants every catalog badge not yet in set whose condition holds,
// and returns the newly earned ones in catalog order. a may be nil when
// only accumulated state changed.
func (e *Engine) Evaluate(set *Set, snap Snapshot, a activity.Activity, now time.Time) []Badge {
	var earned []Badge
	for _, b := range e.Catalog {
		if set.Has(b.ID) {
			continue
		}
		if !e.holds(b.Condition, snap, a, now) {
			continue
		}
		if got, ok := set.add(b, now); ok {
			earned = append(earned, got)
		}
	}
	return earned
}

// Grant adds the catalog badge id to set regardless of its condition. It
// returns false when the badge was already owned.
func (e *Engine) Grant(set *Set, id string, now time.Time) (Badge, bool, error) {
	b, ok := e.Catalog.Find(id)
	if !ok {
		return Badge{}, false, shared.ErrBadgeNotFound
	}
	got, added := set.add(b, now)
	return got, added, nil
}
