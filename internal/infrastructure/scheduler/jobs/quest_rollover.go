// Package jobs contains the scheduled jobs of the progression worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/domain/quest"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEST ROLLOVER JOB
// ══════════════════════════════════════════════════════════════════════════════

// QuestGenerator is the part of the engine the rollover drives.
type QuestGenerator interface {
	GenerateDailyQuests(ctx context.Context, learnerID string, now time.Time) ([]quest.Quest, error)
	GenerateWeeklyQuests(ctx context.Context, learnerID string, now time.Time) ([]quest.Quest, error)
}

// QuestRolloverJob gives every known learner the quests of the new day and
// week. Generation is idempotent per day and week, and each call also
// expires overdue quests, so running the job twice is harmless.
type QuestRolloverJob struct {
	generator QuestGenerator
	learners  learner.Lister
	clock     shared.Clock
	logger    *slog.Logger
	config    QuestRolloverConfig

	lastStats atomic.Pointer[RolloverStats]
}

// QuestRolloverConfig configures the job.
type QuestRolloverConfig struct {
	// Concurrency - learners processed in parallel.
	Concurrency int

	// Timeout bounds one run. Zero means no limit.
	Timeout time.Duration

	// Weekly also generates weekly quests.
	Weekly bool
}

// DefaultQuestRolloverConfig returns sensible defaults.
func DefaultQuestRolloverConfig() QuestRolloverConfig {
	return QuestRolloverConfig{
		Concurrency: 5,
		Timeout:     10 * time.Minute,
		Weekly:      true,
	}
}

// RolloverStats summarizes one run.
type RolloverStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Learners    int
	QuestsAdded int
	Failed      int
}

// NewQuestRolloverJob creates the job. A nil clock uses the system clock.
func NewQuestRolloverJob(
	generator QuestGenerator,
	learners learner.Lister,
	clock shared.Clock,
	logger *slog.Logger,
	config QuestRolloverConfig,
) *QuestRolloverJob {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = shared.SystemClock
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	return &QuestRolloverJob{
		generator: generator,
		learners:  learners,
		clock:     clock,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *QuestRolloverJob) Name() string {
	return "quest_rollover"
}

// Description returns a human-readable description.
func (j *QuestRolloverJob) Description() string {
	return "Generates the day's and week's quests for every learner and expires overdue ones"
}

// LastStats returns the stats of the last completed run, or nil.
func (j *QuestRolloverJob) LastStats() *RolloverStats {
	return j.lastStats.Load()
}

// Run executes the rollover. It fails when more than half of the learners
// could not be processed.
func (j *QuestRolloverJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	stats := &RolloverStats{StartedAt: now}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	ids, err := learner.LearnerIDs(ctx, j.learners)
	if err != nil {
		return fmt.Errorf("list learners: %w", err)
	}
	stats.Learners = len(ids)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			added, err := j.rollover(gctx, id.String(), now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				j.logger.Warn("quest rollover failed", "learner_id", id, "error", err)
				return nil
			}
			stats.QuestsAdded += added
			return nil
		})
	}
	_ = g.Wait()

	stats.CompletedAt = j.clock.Now()
	j.lastStats.Store(stats)

	j.logger.Info("quest rollover completed",
		"learners", stats.Learners,
		"quests_added", stats.QuestsAdded,
		"failed", stats.Failed,
	)

	if err := ctx.Err(); err != nil {
		return err
	}
	if stats.Learners > 0 && stats.Failed*2 > stats.Learners {
		return fmt.Errorf("rollover failed for more than 50%% of learners (%d/%d)", stats.Failed, stats.Learners)
	}
	return nil
}

func (j *QuestRolloverJob) rollover(ctx context.Context, id string, now time.Time) (int, error) {
	daily, err := j.generator.GenerateDailyQuests(ctx, id, now)
	if err != nil {
		return 0, err
	}
	added := len(daily)
	if j.config.Weekly {
		weekly, err := j.generator.GenerateWeeklyQuests(ctx, id, now)
		if err != nil {
			return added, err
		}
		added += len(weekly)
	}
	return added, nil
}
