// Package streak keeps a learner's daily activity ledger: current and
// longest streak, per-day history and one-shot milestones.
package streak

import (
	"fmt"
	"sort"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
	"github.com/alem-hub/learner-progression/internal/domain/experience"
	"github.com/alem-hub/learner-progression/internal/domain/reward"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/pkg/timeutil"
)

// DefaultMilestones are the streak lengths rewarded when nothing is configured.
var DefaultMilestones = []int{3, 7, 14, 30}

// LegendBadgeID is granted by the 30-day milestone.
const LegendBadgeID = "streak_legend"

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Policy configures the tracker.
type Policy struct {
	// Milestones - streak lengths that grant a one-time reward.
	Milestones []int

	// GraceDays - consecutive missed days tolerated before the streak
	// resets. Zero is the strict policy: any miss resets.
	GraceDays int

	// HistoryDays - history entries kept, newest first. Zero keeps all.
	HistoryDays int
}

// DefaultPolicy is strict with the default milestones and 90 days of history.
func DefaultPolicy() Policy {
	return Policy{Milestones: DefaultMilestones, HistoryDays: 90}
}

// MilestoneRewards returns the rewards for reaching a streak of days.
func MilestoneRewards(days int) []reward.Reward {
	rewards := []reward.Reward{
		reward.XP(experience.Award(activity.StreakMilestone{Days: days})),
		reward.Coins(days * 2),
	}
	switch {
	case days >= 30:
		rewards = append(rewards, reward.Badge(LegendBadgeID, shared.RarityLegendary))
	case days >= 7:
		rewards = append(rewards, reward.Item("focus_boost", 1))
	}
	return rewards
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Day is one history entry, keyed by calendar date.
type Day struct {
	// Date - calendar day key, e.g. "2026-10-16".
	Date string `json:"date"`

	// Completed - whether the learner studied that day.
	Completed bool `json:"completed"`

	// StudyMinutes - minutes studied that day.
	StudyMinutes int `json:"study_minutes,omitempty"`

	// Subjects - subjects touched that day.
	Subjects []string `json:"subjects,omitempty"`

	// QualityScore - average accuracy of graded work, 0 when none.
	QualityScore float64 `json:"quality_score,omitempty"`
}

// Milestone is a streak threshold with a one-time reward.
type Milestone struct {
	Days       int             `json:"days"`
	Achieved   bool            `json:"achieved"`
	AchievedAt *time.Time      `json:"achieved_at,omitempty"`
	Rewards    []reward.Reward `json:"rewards,omitempty"`
}

// Record is a learner's streak state.
type Record struct {
	Current    int         `json:"current"`
	Longest    int         `json:"longest"`
	Misses     int         `json:"misses,omitempty"`
	LastDate   string      `json:"last_date,omitempty"`
	History    []Day       `json:"history"`
	Milestones []Milestone `json:"milestones"`
}

// NewRecord returns an empty record with the policy's milestones.
func NewRecord(p Policy) Record {
	var r Record
	r.syncMilestones(p)
	return r
}

// Update reports what a RecordDay call changed.
type Update struct {
	// Counted - whether the counters moved. False for repeats and backfills.
	Counted bool

	// Broken - whether a running streak was reset.
	Broken bool

	// PreviousStreak - streak length before a reset.
	PreviousStreak int

	// Achieved - milestones newly achieved by this call.
	Achieved []Milestone
}

// Entry returns the history entry for a day key.
func (r Record) Entry(date string) (Day, bool) {
	for _, d := range r.History {
		if d.Date == date {
			return d, true
		}
	}
	return Day{}, false
}

// StudiedOn reports whether the learner studied on date.
func (r Record) StudiedOn(date string) bool {
	d, ok := r.Entry(date)
	return ok && d.Completed
}

// RecordDay upserts the entry for day.Date and moves the counters.
//
// Studying increments Current once per date; repeating a studied date only
// merges minutes and subjects. A missed date, or a gap of unrecorded dates
// since the last recorded one, counts as misses; more misses in a row than
// the policy's GraceDays reset Current to zero. Dates earlier than the last
// recorded one, including corrections of stored dates, are stored without
// touching the counters. Milestones with
// Current >= Days are achieved once and never again.
func (r *Record) RecordDay(day Day, at time.Time, p Policy) (Update, error) {
	date, err := timeutil.UTC.ParseDay(day.Date)
	if err != nil {
		return Update{}, shared.WrapError("streak", "RecordDay", shared.ErrInvalidInput, fmt.Sprintf("bad date %q", day.Date), err)
	}
	r.syncMilestones(p)

	var up Update
	prev, existed := r.Entry(day.Date)
	r.upsert(day)

	switch {
	case r.LastDate != "" && day.Date < r.LastDate:
		// Backfill, new or corrected.
	case existed:
		if prev.Completed == day.Completed {
			break
		}
		up.Counted = true
		if day.Completed {
			r.study()
		} else {
			r.miss(1, p, &up)
		}
	default:
		up.Counted = true
		if r.LastDate != "" {
			last, _ := timeutil.UTC.ParseDay(r.LastDate)
			if gap := timeutil.UTC.DaysBetween(last, date) - 1; gap > 0 {
				r.miss(gap, p, &up)
			}
		}
		r.LastDate = day.Date
		if day.Completed {
			r.study()
		} else {
			r.miss(1, p, &up)
		}
	}

	for i := range r.Milestones {
		m := &r.Milestones[i]
		if m.Achieved || r.Current < m.Days {
			continue
		}
		m.Achieved = true
		stamp := at
		m.AchievedAt = &stamp
		up.Achieved = append(up.Achieved, *m)
	}

	r.trim(p.HistoryDays)
	return up, nil
}

func (r *Record) study() {
	r.Misses = 0
	r.Current++
	if r.Current > r.Longest {
		r.Longest = r.Current
	}
}

func (r *Record) miss(n int, p Policy, up *Update) {
	r.Misses += n
	if r.Misses <= p.GraceDays || r.Current == 0 {
		return
	}
	up.Broken = true
	up.PreviousStreak = r.Current
	r.Current = 0
}

// upsert merges day into the history, keeping it sorted by date.
func (r *Record) upsert(day Day) {
	for i := range r.History {
		h := &r.History[i]
		if h.Date != day.Date {
			continue
		}
		h.Completed = day.Completed
		h.StudyMinutes += day.StudyMinutes
		h.Subjects = mergeSubjects(h.Subjects, day.Subjects)
		if day.QualityScore > 0 {
			h.QualityScore = day.QualityScore
		}
		return
	}
	day.Subjects = mergeSubjects(nil, day.Subjects)
	r.History = append(r.History, day)
	sort.Slice(r.History, func(i, j int) bool { return r.History[i].Date < r.History[j].Date })
}

func (r *Record) trim(keep int) {
	if keep > 0 && len(r.History) > keep {
		r.History = append([]Day(nil), r.History[len(r.History)-keep:]...)
	}
}

// syncMilestones adds configured thresholds the record does not have yet.
// Existing milestones, achieved or not, are left alone.
func (r *Record) syncMilestones(p Policy) {
	have := make(map[int]bool, len(r.Milestones))
	for _, m := range r.Milestones {
		have[m.Days] = true
	}
	for _, days := range p.Milestones {
		if days <= 0 || have[days] {
			continue
		}
		have[days] = true
		r.Milestones = append(r.Milestones, Milestone{Days: days, Rewards: MilestoneRewards(days)})
	}
	sort.Slice(r.Milestones, func(i, j int) bool { return r.Milestones[i].Days < r.Milestones[j].Days })
}

func mergeSubjects(have, add []string) []string {
	seen := make(map[string]bool, len(have)+len(add))
	var out []string
	for _, s := range append(append([]string(nil), have...), add...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
