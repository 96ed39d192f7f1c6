package engine

import (
	"context"
	"sort"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/badge"
	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/domain/powerup"
	"github.com/alem-hub/learner-progression/internal/domain/quest"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// Queries never write. A learner with nothing stored yet reads as a fresh
// learner.

// read decodes one category of learnerID into dest.
func (e *Engine) read(ctx context.Context, learnerID string, c learner.Category, dest any) (shared.LearnerID, error) {
	id, err := shared.NewLearnerID(learnerID)
	if err != nil {
		return "", err
	}
	key := learner.Key(c, id)
	if _, err := e.store.Get(ctx, key, dest); err != nil {
		return id, learner.PersistenceError("Get", key, err)
	}
	return id, nil
}

// GetProgression returns the learner's experience, economy and stats with
// the derived level breakdown.
func (e *Engine) GetProgression(ctx context.Context, learnerID string) (learner.View, error) {
	var p learner.Progression
	id, err := e.read(ctx, learnerID, learner.CategoryProgression, &p)
	if err != nil {
		return learner.View{}, err
	}
	if p.LearnerID == "" {
		p = learner.NewProgression(id)
	}
	return learner.NewView(p), nil
}

// GetActiveQuests returns the quests still accepting progress at now,
// soonest deadline first. A zero now means the engine clock.
func (e *Engine) GetActiveQuests(ctx context.Context, learnerID string, now time.Time) ([]quest.Quest, error) {
	var l quest.Log
	if _, err := e.read(ctx, learnerID, learner.CategoryQuests, &l); err != nil {
		return nil, err
	}
	active := l.Active(e.now(now))
	quest.SortByDeadline(active)
	return active, nil
}

// GetStreak returns the learner's streak record.
func (e *Engine) GetStreak(ctx context.Context, learnerID string) (streak.Record, error) {
	r := streak.NewRecord(e.cfg.Streak)
	if _, err := e.read(ctx, learnerID, learner.CategoryStreak, &r); err != nil {
		return streak.Record{}, err
	}
	return r, nil
}

// GetBadges returns the owned badges, oldest first.
func (e *Engine) GetBadges(ctx context.Context, learnerID string) ([]badge.Badge, error) {
	set := badge.NewSet()
	if _, err := e.read(ctx, learnerID, learner.CategoryBadges, &set); err != nil {
		return nil, err
	}
	out := make([]badge.Badge, 0, set.Len())
	for _, b := range set.Earned {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].EarnedAt, out[j].EarnedAt
		if ti != nil && tj != nil && !ti.Equal(*tj) {
			return ti.Before(*tj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetInventory returns the learner's power-up stock and usage.
func (e *Engine) GetInventory(ctx context.Context, learnerID string) (powerup.Inventory, error) {
	inv := powerup.NewInventory()
	if _, err := e.read(ctx, learnerID, learner.CategoryInventory, &inv); err != nil {
		return powerup.Inventory{}, err
	}
	return inv, nil
}
