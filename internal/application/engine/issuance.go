package engine

import (
	"fmt"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
	"github.com/alem-hub/learner-progression/internal/domain/badge"
	"github.com/alem-hub/learner-progression/internal/domain/experience"
	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/domain/leveling"
	"github.com/alem-hub/learner-progression/internal/domain/quest"
	"github.com/alem-hub/learner-progression/internal/domain/reward"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/internal/domain/streak"
	"github.com/alem-hub/learner-progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD ISSUANCE
// ══════════════════════════════════════════════════════════════════════════════

// addExperience raises total experience by amount from source.
func (e *Engine) addExperience(st *state, amount int, source string, now time.Time) {
	if amount <= 0 {
		return
	}
	st.prog.AddExperience(amount)
	st.out.ExperienceGained += amount
	st.touch(learner.CategoryProgression)
	st.emit(shared.XPGainedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventXPGained, st.id.String(), now),
		Amount:    amount,
		NewTotal:  st.prog.TotalExperience,
		Source:    source,
	})
}

// issue applies rewards granted by source. Every reward gets a grant key
// derived from the learner, the source and its position; a key already in
// the wallet is skipped, so replaying a source never pays twice.
func (e *Engine) issue(st *state, source string, rewards []reward.Reward, now time.Time) {
	for _, r := range reward.Stamp(st.id.String(), source, rewards) {
		if err := e.grantable(r); err != nil {
			e.log.Warn("reward skipped",
				logger.LearnerID(st.id.String()), logger.String("source", source),
				logger.String("kind", string(r.Kind)), logger.Err(err))
			continue
		}
		if !st.prog.Economy.Claim(r.Key, now) {
			e.log.Debug("reward already granted",
				logger.LearnerID(st.id.String()), logger.String("grant_key", r.Key))
			continue
		}
		st.touch(learner.CategoryProgression)

		switch r.Kind {
		case reward.KindXP:
			e.addExperience(st, experience.Granted(r.Amount), source, now)
		case reward.KindCoins:
			st.prog.Economy.AddCoins(r.Amount)
		case reward.KindItem:
			// Existence was checked by grantable.
			_ = e.powerups.Grant(&st.inventory, r.ItemID, r.Amount)
			st.touch(learner.CategoryInventory)
		case reward.KindTitle:
			st.prog.Economy.AddTitle(r.ItemID, now)
		case reward.KindBadge:
			if b, added, err := e.badges.Grant(&st.badges, r.ItemID, now); err == nil && added {
				e.badgeEarned(st, b, now)
			}
		}
		st.out.Rewards = append(st.out.Rewards, r)
	}
}

// grantable rejects malformed rewards and ids missing from the catalogs.
func (e *Engine) grantable(r reward.Reward) error {
	if err := r.Validate(); err != nil {
		return err
	}
	switch r.Kind {
	case reward.KindItem:
		if _, ok := e.powerups.Catalog[r.ItemID]; !ok {
			return shared.ErrPowerUpNotFound
		}
	case reward.KindBadge:
		if _, ok := e.badges.Catalog.Find(r.ItemID); !ok {
			return shared.ErrBadgeNotFound
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPONENT RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// routeQuests offers a to every open quest and completes the ones it
// finishes.
func (e *Engine) routeQuests(st *state, a activity.Activity, now time.Time) {
	if len(st.quests.Quests) == 0 {
		return
	}
	st.touch(learner.CategoryQuests)
	for _, res := range st.quests.ApplyAll(a, st.prog.Level().Level) {
		st.out.QuestProgress = append(st.out.QuestProgress, res)
		if !res.QuestCompleted {
			continue
		}
		if q, ok := st.quests.Find(res.QuestID); ok {
			e.completeQuest(st, *q, now)
		}
	}
}

func (e *Engine) completeQuest(st *state, q quest.Quest, now time.Time) {
	st.out.CompletedQuests = append(st.out.CompletedQuests, q)
	st.prog.Count(activity.QuestCompleted{Details: activity.Details{At: now}, QuestID: q.ID})
	st.touch(learner.CategoryProgression)
	st.emit(shared.QuestCompletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventQuestCompleted, st.id.String(), now),
		QuestID:   q.ID,
		Category:  string(q.Category),
	})
	e.log.Info("quest completed", logger.LearnerID(st.id.String()), logger.QuestID(q.ID))
	e.issue(st, "quest:"+q.ID, q.Rewards, now)
}

// recordDay runs the streak tracker and everything that follows from it:
// milestone rewards, break notification and streak quests.
func (e *Engine) recordDay(st *state, day streak.Day, now time.Time) error {
	up, err := st.streak.RecordDay(day, now, e.cfg.Streak)
	if err != nil {
		return err
	}
	st.touch(learner.CategoryStreak)

	if up.Broken {
		st.out.StreakBroken = true
		st.emit(shared.StreakBrokenEvent{
			BaseEvent:      shared.NewBaseEvent(shared.EventStreakBroken, st.id.String(), now),
			PreviousStreak: up.PreviousStreak,
		})
	}
	for _, m := range up.Achieved {
		st.out.Milestones = append(st.out.Milestones, m)
		st.emit(shared.MilestoneAchievedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventMilestoneAchieved, st.id.String(), now),
			Days:      m.Days,
		})
		e.log.Info("streak milestone achieved",
			logger.LearnerID(st.id.String()), logger.Int("days", m.Days))
		e.issue(st, fmt.Sprintf("streak:%d", m.Days), m.Rewards, now)
	}
	if up.Counted {
		e.routeQuests(st, activity.StreakUpdated{
			Details: activity.Details{At: now},
			Days:    st.streak.Current,
		}, now)
	}
	return nil
}

// evaluateBadges grants every badge whose condition now holds.
func (e *Engine) evaluateBadges(st *state, a activity.Activity, now time.Time) {
	snap := st.prog.BadgeSnapshot(st.streak.Current)
	for _, b := range e.badges.Evaluate(&st.badges, snap, a, now) {
		e.badgeEarned(st, b, now)
	}
}

func (e *Engine) badgeEarned(st *state, b badge.Badge, now time.Time) {
	st.touch(learner.CategoryBadges)
	st.out.NewBadges = append(st.out.NewBadges, b)
	st.emit(shared.BadgeEarnedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventBadgeEarned, st.id.String(), now),
		BadgeID:   b.ID,
		Rarity:    string(b.Rarity),
	})
	e.log.Info("badge earned", logger.LearnerID(st.id.String()), logger.BadgeID(b.ID))
}

// finishLevel records the final level in the outcome and announces a
// level-up once per call, however many levels were crossed.
func (e *Engine) finishLevel(st *state, now time.Time) {
	after := st.prog.Level()
	st.out.Level = after
	if after.Level <= st.out.PreviousLevel {
		return
	}
	unlocked := leveling.NewlyUnlocked(st.out.PreviousLevel, after.Level)
	st.out.Unlocked = unlocked

	names := make([]string, 0, len(unlocked))
	for _, b := range unlocked {
		names = append(names, b.Name)
	}
	st.emit(shared.LevelUpEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLevelUp, st.id.String(), now),
		OldLevel:  st.out.PreviousLevel,
		NewLevel:  after.Level,
		Unlocked:  names,
	})
	e.log.Info("level up",
		logger.LearnerID(st.id.String()),
		logger.LevelNumber(after.Level),
		logger.Int("previous_level", st.out.PreviousLevel))
}
