// Package engine turns learner activities into progression state. It
// routes each activity to the quest, streak and badge components, folds
// the rewards they grant back into experience, and persists every touched
// state category through a learner.Store before returning.
//
// The engine holds no per-learner state between calls and takes no locks:
// one logical caller per learner is assumed, and concurrent writers to the
// same learner resolve as last-write-wins in the store.
package engine

import (
	"context"
	"time"

	"github.com/alem-hub/learner-progression/internal/domain/badge"
	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/domain/powerup"
	"github.com/alem-hub/learner-progression/internal/domain/quest"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/internal/domain/streak"
	"github.com/alem-hub/learner-progression/pkg/logger"
	"github.com/alem-hub/learner-progression/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config tunes engine behaviour.
type Config struct {
	// Streak - milestones, grace days and history length.
	Streak streak.Policy

	// AutoDailyQuests - generate the day's quests on the first mutation
	// of each day.
	AutoDailyQuests bool

	// AutoWeeklyQuests - generate the week's quests on the first mutation
	// of each ISO week.
	AutoWeeklyQuests bool

	// QuestHistoryDays - finished quests older than this are pruned.
	// Zero keeps everything.
	QuestHistoryDays int
}

// DefaultConfig returns the strict streak policy with automatic quest
// generation and 30 days of quest history.
func DefaultConfig() Config {
	return Config{
		Streak:           streak.DefaultPolicy(),
		AutoDailyQuests:  true,
		AutoWeeklyQuests: true,
		QuestHistoryDays: 30,
	}
}

// Deps are the collaborators of an Engine. Only Store is required.
type Deps struct {
	Store     learner.Store
	Clock     shared.Clock
	Publisher shared.EventPublisher
	Logger    *logger.Logger
	Calendar  timeutil.Calendar
	PowerUps  powerup.Catalog
	Badges    badge.Catalog
	Config    *Config
}

// Engine is the progression engine. Create it with New.
type Engine struct {
	store     learner.Store
	clock     shared.Clock
	publisher shared.EventPublisher
	log       *logger.Logger
	calendar  timeutil.Calendar
	cfg       Config

	quests   quest.Generator
	powerups *powerup.Governor
	badges   *badge.Engine
}

// New builds an Engine from deps.
func New(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, shared.NewDomainError("engine", "New", shared.ErrInvalidInput, "store is required")
	}
	if deps.Clock == nil {
		deps.Clock = shared.SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	cfg := DefaultConfig()
	if deps.Config != nil {
		cfg = *deps.Config
	}

	return &Engine{
		store:     deps.Store,
		clock:     deps.Clock,
		publisher: deps.Publisher,
		log:       deps.Logger.With(logger.Component("engine")),
		calendar:  deps.Calendar,
		cfg:       cfg,
		quests:    quest.NewGenerator(deps.Calendar),
		powerups:  powerup.NewGovernor(deps.PowerUps, deps.Calendar),
		badges:    badge.NewEngine(deps.Badges, deps.Calendar),
	}, nil
}

// now returns t, or the clock's time when t is zero.
func (e *Engine) now(t time.Time) time.Time {
	if t.IsZero() {
		return e.clock.Now()
	}
	return t
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// state is one learner's full progression, loaded for a single call.
type state struct {
	id        shared.LearnerID
	prog      learner.Progression
	quests    quest.Log
	streak    streak.Record
	badges    badge.Set
	inventory powerup.Inventory

	dirty  map[learner.Category]bool
	events []shared.Event
	out    *Outcome
}

func (st *state) touch(cats ...learner.Category) {
	for _, c := range cats {
		st.dirty[c] = true
	}
}

func (st *state) emit(ev shared.Event) {
	st.events = append(st.events, ev)
}

// load reads every category of id. Missing keys start empty.
func (e *Engine) load(ctx context.Context, id shared.LearnerID) (*state, error) {
	st := &state{
		id:        id,
		prog:      learner.NewProgression(id),
		streak:    streak.NewRecord(e.cfg.Streak),
		badges:    badge.NewSet(),
		inventory: powerup.NewInventory(),
		dirty:     make(map[learner.Category]bool),
	}

	targets := []struct {
		key  string
		dest any
	}{
		{learner.KeyProgression(id), &st.prog},
		{learner.KeyQuests(id), &st.quests},
		{learner.KeyStreak(id), &st.streak},
		{learner.KeyBadges(id), &st.badges},
		{learner.KeyInventory(id), &st.inventory},
	}
	for _, t := range targets {
		if _, err := e.store.Get(ctx, t.key, t.dest); err != nil {
			e.log.Error("failed to load learner state",
				logger.LearnerID(id.String()), logger.StoreKey(t.key), logger.Err(err))
			return nil, learner.PersistenceError("Get", t.key, err)
		}
	}
	if st.prog.LearnerID == "" {
		st.prog.LearnerID = id
	}
	if err := st.prog.Validate(); err != nil {
		e.log.Error("stored progression is invalid",
			logger.LearnerID(id.String()), logger.Err(err))
		return nil, err
	}
	return st, nil
}

// save writes the dirty categories. The first failure aborts and is
// returned as a persistence error; in-memory changes are then not durable.
func (e *Engine) save(ctx context.Context, st *state) error {
	for _, c := range learner.Categories {
		if !st.dirty[c] {
			continue
		}
		key := learner.Key(c, st.id)
		var value any
		switch c {
		case learner.CategoryProgression:
			value = st.prog
		case learner.CategoryQuests:
			value = st.quests
		case learner.CategoryStreak:
			value = st.streak
		case learner.CategoryBadges:
			value = st.badges
		case learner.CategoryInventory:
			value = st.inventory
		}
		if err := e.store.Put(ctx, key, value); err != nil {
			e.log.Error("failed to persist learner state",
				logger.LearnerID(st.id.String()), logger.StoreKey(key), logger.Err(err))
			return learner.PersistenceError("Put", key, err)
		}
	}
	return nil
}

// begin loads state and runs housekeeping shared by all mutations:
// quest expiry, pruning and automatic generation.
func (e *Engine) begin(ctx context.Context, rawID string, now time.Time) (*state, error) {
	id, err := shared.NewLearnerID(rawID)
	if err != nil {
		return nil, err
	}
	st, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	st.out = newOutcome(id, st.prog.Level())

	for _, q := range st.quests.Expire(now) {
		st.touch(learner.CategoryQuests)
		st.out.ExpiredQuests = append(st.out.ExpiredQuests, q.ID)
		st.emit(shared.QuestExpiredEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventQuestExpired, id.String(), now),
			QuestID:   q.ID,
		})
	}
	if days := e.cfg.QuestHistoryDays; days > 0 {
		if n := st.quests.Prune(now.AddDate(0, 0, -days)); n > 0 {
			st.touch(learner.CategoryQuests)
		}
	}
	if e.cfg.AutoDailyQuests {
		e.mergeQuests(st, e.quests.GenerateDaily(st.prog.Level().Level, e.snapshot(st), now))
	}
	if e.cfg.AutoWeeklyQuests {
		e.mergeQuests(st, e.quests.GenerateWeekly(st.prog.Level().Level, now))
	}
	return st, nil
}

// commit finalizes the outcome, persists, then publishes events.
func (e *Engine) commit(ctx context.Context, st *state, now time.Time) (Outcome, error) {
	e.finishLevel(st, now)
	if len(st.dirty) > 0 {
		st.prog.UpdatedAt = now
		st.touch(learner.CategoryProgression)
	}
	if err := e.save(ctx, st); err != nil {
		return *st.out, err
	}
	e.publish(ctx, st)
	return *st.out, nil
}

func (e *Engine) publish(ctx context.Context, st *state) {
	if e.publisher == nil || len(st.events) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, st.events...); err != nil {
		// Events are notifications; state is already durable.
		e.log.Warn("failed to publish events",
			logger.LearnerID(st.id.String()), logger.Int("count", len(st.events)), logger.Err(err))
	}
}

func (e *Engine) snapshot(st *state) quest.Snapshot {
	return quest.Snapshot{Streak: st.streak.Current, FocusSubject: st.prog.LastSubject}
}

func (e *Engine) mergeQuests(st *state, generated []quest.Quest) []quest.Quest {
	added := st.quests.Merge(generated)
	if len(added) > 0 {
		st.touch(learner.CategoryQuests)
		e.log.Debug("quests generated",
			logger.LearnerID(st.id.String()), logger.Int("count", len(added)))
	}
	return added
}
