package engine

import (
	"context"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
	"github.com/alem-hub/learner-progression/internal/domain/experience"
	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/domain/quest"
	"github.com/alem-hub/learner-progression/internal/domain/reward"
	"github.com/alem-hub/learner-progression/internal/domain/streak"
	"github.com/alem-hub/learner-progression/pkg/logger"
)

// RecordActivity applies one activity event for a learner.
//
// The activity earns its own experience, is counted into the learner's
// stats, marks the day as studied when it is a learning activity, then is
// offered to every open quest and to the badge catalog. Rewards granted
// along the way are applied before the state is written. An unrecognized
// or malformed event earns nothing, reaches no component and is reported
// as Ignored; quest housekeeping (expiry, pruning, generation) still runs
// at its timestamp.
func (e *Engine) RecordActivity(ctx context.Context, learnerID string, ev activity.Event) (Outcome, error) {
	now := e.now(ev.Timestamp)
	ev.Timestamp = now

	a, err := activity.Decode(ev)
	if err != nil {
		e.log.Warn("malformed activity payload",
			logger.LearnerID(learnerID), logger.ActivityKind(ev.Type), logger.Err(err))
	}

	st, err := e.begin(ctx, learnerID, now)
	if err != nil {
		return Outcome{}, err
	}
	log := e.log.With(logger.LearnerID(learnerID), logger.ActivityKind(string(a.Kind())))

	if activity.IsUnrecognized(a) {
		log.Debug("activity ignored")
		st.out.Ignored = true
		return e.commit(ctx, st, now)
	}

	xp := experience.Award(a)
	e.addExperience(st, xp, string(a.Kind()), now)
	st.prog.Count(a)
	st.touch(learner.CategoryProgression)

	if a.Kind().Learning() {
		if err := e.recordDay(st, studyDay(e.calendarDay(now), a), now); err != nil {
			return Outcome{}, err
		}
	}
	e.routeQuests(st, a, now)
	e.evaluateBadges(st, a, now)

	out, err := e.commit(ctx, st, now)
	if err != nil {
		return out, err
	}
	log.Debug("activity recorded",
		logger.XPAmount(out.ExperienceGained), logger.LevelNumber(out.Level.Level))
	return out, nil
}

// RecordDay records whether the learner studied on day.Date. An empty
// date means the calendar day of now.
func (e *Engine) RecordDay(ctx context.Context, learnerID string, day streak.Day, now time.Time) (Outcome, error) {
	now = e.now(now)
	if day.Date == "" {
		day.Date = e.calendarDay(now)
	}

	st, err := e.begin(ctx, learnerID, now)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.recordDay(st, day, now); err != nil {
		return Outcome{}, err
	}
	e.evaluateBadges(st, nil, now)
	return e.commit(ctx, st, now)
}

// ApplyToQuest offers an activity to a single quest. Unlike RecordActivity
// it awards no activity experience and touches no other component; only the
// quest and, when it completes, its rewards change. A missing, finished or
// locked quest is reported through the result's Reason.
func (e *Engine) ApplyToQuest(ctx context.Context, learnerID, questID string, ev activity.Event) (quest.Result, Outcome, error) {
	now := e.now(ev.Timestamp)
	ev.Timestamp = now
	a, _ := activity.Decode(ev)

	st, err := e.begin(ctx, learnerID, now)
	if err != nil {
		return quest.Result{}, Outcome{}, err
	}

	res := st.quests.Apply(questID, a, st.prog.Level().Level)
	if res.Reason == nil || res.Progressed {
		st.touch(learner.CategoryQuests)
	}
	if res.Progressed {
		st.out.QuestProgress = append(st.out.QuestProgress, res)
	}
	if res.QuestCompleted {
		if q, ok := st.quests.Find(questID); ok {
			e.completeQuest(st, *q, now)
		}
		e.evaluateBadges(st, nil, now)
	}

	out, err := e.commit(ctx, st, now)
	return res, out, err
}

// GenerateDailyQuests adds the quests of now's calendar day. Calling it
// again on the same day adds nothing. It returns the quests added.
func (e *Engine) GenerateDailyQuests(ctx context.Context, learnerID string, now time.Time) ([]quest.Quest, error) {
	now = e.now(now)
	st, err := e.begin(ctx, learnerID, now)
	if err != nil {
		return nil, err
	}
	added := e.mergeQuests(st, e.quests.GenerateDaily(st.prog.Level().Level, e.snapshot(st), now))
	if _, err := e.commit(ctx, st, now); err != nil {
		return nil, err
	}
	return added, nil
}

// GenerateWeeklyQuests adds the quests of now's ISO week.
func (e *Engine) GenerateWeeklyQuests(ctx context.Context, learnerID string, now time.Time) ([]quest.Quest, error) {
	now = e.now(now)
	st, err := e.begin(ctx, learnerID, now)
	if err != nil {
		return nil, err
	}
	added := e.mergeQuests(st, e.quests.GenerateWeekly(st.prog.Level().Level, now))
	if _, err := e.commit(ctx, st, now); err != nil {
		return nil, err
	}
	return added, nil
}

// GrantRewards applies rewards from an external source, e.g. a special
// event. Grant keys derive from source, so repeating a call with the same
// source and rewards grants nothing new.
func (e *Engine) GrantRewards(ctx context.Context, learnerID, source string, rewards []reward.Reward, now time.Time) (Outcome, error) {
	now = e.now(now)
	st, err := e.begin(ctx, learnerID, now)
	if err != nil {
		return Outcome{}, err
	}
	e.issue(st, "grant:"+source, rewards, now)
	e.evaluateBadges(st, nil, now)
	return e.commit(ctx, st, now)
}

func (e *Engine) calendarDay(t time.Time) string {
	return e.calendar.DayKey(t)
}

// studyDay builds the streak entry a learning activity contributes.
func studyDay(date string, a activity.Activity) streak.Day {
	d := a.Info()
	day := streak.Day{Date: date, Completed: true, StudyMinutes: d.Minutes}
	if d.Subject != "" {
		day.Subjects = []string{d.Subject}
	}
	if d.Graded {
		day.QualityScore = d.Accuracy
	}
	return day
}
