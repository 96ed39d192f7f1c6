package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learner-progression/internal/domain/activity"
	"github.com/alem-hub/learner-progression/internal/domain/experience"
	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/domain/reward"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/internal/domain/streak"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/learner-progression/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

var noon = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(_ context.Context, events ...shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) count(t shared.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.EventType() == t {
			n++
		}
	}
	return n
}

// failingStore fails every Put, and every Get once failGet is set.
type failingStore struct {
	*memory.Store
	failGet bool
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	if s.failGet {
		return false, errDiskFull
	}
	return s.Store.Get(ctx, key, dest)
}

func (s *failingStore) Put(context.Context, string, any) error {
	return errDiskFull
}

func quietConfig() *Config {
	cfg := DefaultConfig()
	cfg.AutoDailyQuests = false
	cfg.AutoWeeklyQuests = false
	return &cfg
}

func newTestEngine(t *testing.T, cfg *Config) (*Engine, *memory.Store, *recorder) {
	t.Helper()
	store := memory.New()
	rec := &recorder{}
	e, err := New(Deps{
		Store:     store,
		Clock:     shared.FixedClock(noon),
		Publisher: rec,
		Calendar:  timeutil.UTC,
		Config:    cfg,
	})
	require.NoError(t, err)
	return e, store, rec
}

func event(t *testing.T, kind activity.Kind, p activity.Payload, at time.Time) activity.Event {
	t.Helper()
	ev, err := activity.NewEvent(kind, p, at)
	require.NoError(t, err)
	return ev
}

func hardProblem(t *testing.T, at time.Time) activity.Event {
	acc := 0.95
	return event(t, activity.KindProblemSolved, activity.Payload{Subject: "math", Difficulty: 8, Accuracy: &acc}, at)
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestRecordActivity_ExperienceAndLevelUp(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, quietConfig())

	for i := 0; i < 5; i++ {
		out, err := e.RecordActivity(ctx, "alice", hardProblem(t, noon.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, 19, out.ExperienceGained)
		assert.False(t, out.LeveledUp())
	}

	view, err := e.GetProgression(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(95), view.Progression.TotalExperience)
	assert.Equal(t, 1, view.Level.Level)
	assert.Equal(t, 5, view.Progression.Stats.ProblemsSolved)

	out, err := e.RecordActivity(ctx, "alice", hardProblem(t, noon.Add(10*time.Minute)))
	require.NoError(t, err)
	assert.True(t, out.LeveledUp())
	assert.Equal(t, 1, out.PreviousLevel)
	assert.Equal(t, 2, out.Level.Level)
	assert.Equal(t, int64(14), out.Level.CurrentExperience)
	assert.Equal(t, int64(150), out.Level.ExperienceToNextLevel)
	assert.Empty(t, out.Unlocked)

	assert.Equal(t, 6, rec.count(shared.EventXPGained))
	assert.Equal(t, 1, rec.count(shared.EventLevelUp))
}

func TestRecordActivity_StudiedDayCountsOnce(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, quietConfig())

	for i := 0; i < 3; i++ {
		_, err := e.RecordActivity(ctx, "alice", hardProblem(t, noon.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	r, err := e.GetStreak(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Current)
	assert.True(t, r.StudiedOn("2026-10-16"))
}

func TestRecordActivity_UnrecognizedIsIgnored(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, quietConfig())

	out, err := e.RecordActivity(ctx, "alice", activity.Event{Type: "dance_battle", Timestamp: noon})
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Zero(t, out.ExperienceGained)

	out, err = e.RecordActivity(ctx, "alice", activity.Event{
		Type:      string(activity.KindProblemSolved),
		Payload:   []byte(`{"difficulty":"hard"`),
		Timestamp: noon,
	})
	require.NoError(t, err)
	assert.True(t, out.Ignored)

	view, err := e.GetProgression(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, view.Progression.TotalExperience)
	assert.Zero(t, view.Progression.Stats.ProblemsSolved)
	assert.Zero(t, rec.count(shared.EventXPGained))
}

func TestRecordActivity_IgnoredStillRunsQuestHousekeeping(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, nil)

	out, err := e.RecordActivity(ctx, "alice", activity.Event{Type: "dance_battle", Timestamp: noon})
	require.NoError(t, err)
	assert.True(t, out.Ignored)

	active, err := e.GetActiveQuests(ctx, "alice", noon)
	require.NoError(t, err)
	assert.NotEmpty(t, active)

	out, err = e.RecordActivity(ctx, "alice", activity.Event{Type: "dance_battle", Timestamp: noon.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Contains(t, out.ExpiredQuests, "daily:2026-10-16:time")
	assert.Positive(t, rec.count(shared.EventQuestExpired))
	assert.Zero(t, rec.count(shared.EventXPGained))
}

func TestRecordActivity_CallerCannotRaiseStreakUpdate(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, quietConfig())

	for _, date := range []string{"2026-10-14", "2026-10-15"} {
		_, err := e.RecordDay(ctx, "alice", streak.Day{Date: date, Completed: true, StudyMinutes: 20}, noon)
		require.NoError(t, err)
	}
	added, err := e.GenerateDailyQuests(ctx, "alice", noon)
	require.NoError(t, err)
	require.Len(t, added, 3)

	before, err := e.GetProgression(ctx, "alice")
	require.NoError(t, err)

	out, err := e.RecordActivity(ctx, "alice",
		event(t, activity.KindStreakUpdated, activity.Payload{StreakDays: 500}, noon))
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Empty(t, out.CompletedQuests)
	assert.Empty(t, out.Rewards)
	assert.Zero(t, out.ExperienceGained)

	after, err := e.GetProgression(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before.Progression.TotalExperience, after.Progression.TotalExperience)

	active, err := e.GetActiveQuests(ctx, "alice", noon)
	require.NoError(t, err)
	assert.Len(t, active, 3)
	assert.Zero(t, rec.count(shared.EventQuestCompleted))

	r, err := e.GetStreak(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Current)
}

func TestRecordActivity_HugeQuestXPNeverWrapsTotal(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, quietConfig())

	huge := math.MaxInt64/2 + 10
	var last int64
	for i := 0; i < 3; i++ {
		_, err := e.RecordActivity(ctx, "alice",
			event(t, activity.KindQuestCompleted, activity.Payload{QuestID: "boss", QuestXP: &huge}, noon.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)

		view, err := e.GetProgression(ctx, "alice")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, view.Progression.TotalExperience, last)
		last = view.Progression.TotalExperience
	}
	assert.Equal(t, int64(3*experience.MaxBase), last)
}

func TestRecordActivity_RejectsCorruptProgression(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newTestEngine(t, quietConfig())

	corrupt := learner.NewProgression("alice")
	corrupt.TotalExperience = -40
	require.NoError(t, store.Put(ctx, learner.KeyProgression("alice"), corrupt))

	_, err := e.RecordActivity(ctx, "alice", hardProblem(t, noon))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}

func TestRecordActivity_InvalidLearner(t *testing.T) {
	e, _, _ := newTestEngine(t, quietConfig())
	_, err := e.RecordActivity(context.Background(), "   ", hardProblem(t, noon))
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestRecordActivity_BadgesAreEarnedOnce(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, quietConfig())

	out, err := e.RecordActivity(ctx, "alice", hardProblem(t, noon))
	require.NoError(t, err)
	require.Len(t, out.NewBadges, 1)
	assert.Equal(t, "first_steps", out.NewBadges[0].ID)

	out, err = e.RecordActivity(ctx, "alice", hardProblem(t, noon.Add(time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, out.NewBadges)

	badges, err := e.GetBadges(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, badges, 1)
	assert.Equal(t, 1, rec.count(shared.EventBadgeEarned))
}

func TestRecordActivity_TimeBasedBadge(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, quietConfig())

	late := time.Date(2026, 10, 16, 2, 30, 0, 0, time.UTC)
	out, err := e.RecordActivity(ctx, "alice",
		event(t, activity.KindStudySession, activity.Payload{Minutes: 20}, late))
	require.NoError(t, err)

	ids := make([]string, 0, len(out.NewBadges))
	for _, b := range out.NewBadges {
		ids = append(ids, b.ID)
	}
	assert.Contains(t, ids, "night_owl")
}

func TestRecordActivity_CompletesQuest(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, quietConfig())

	added, err := e.GenerateDailyQuests(ctx, "alice", noon)
	require.NoError(t, err)
	require.Len(t, added, 2)

	out, err := e.RecordActivity(ctx, "alice",
		event(t, activity.KindStudySession, activity.Payload{Minutes: 45, Subject: "physics"}, noon))
	require.NoError(t, err)

	require.Len(t, out.CompletedQuests, 1)
	assert.Equal(t, "daily:2026-10-16:time", out.CompletedQuests[0].ID)
	assert.Equal(t, 50, out.ExperienceGained)
	assert.Len(t, out.Rewards, 2)

	view, err := e.GetProgression(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), view.Progression.TotalExperience)
	assert.Equal(t, int64(10), view.Progression.Economy.Coins)
	assert.Equal(t, 1, view.Progression.Stats.QuestsCompleted)
	assert.Equal(t, 45, view.Progression.Stats.StudyMinutes)
	assert.Equal(t, 1, rec.count(shared.EventQuestCompleted))

	active, err := e.GetActiveQuests(ctx, "alice", noon)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "daily:2026-10-16:accuracy", active[0].ID)

	// A second session cannot complete the quest again.
	out, err = e.RecordActivity(ctx, "alice",
		event(t, activity.KindStudySession, activity.Payload{Minutes: 45}, noon.Add(time.Hour)))
	require.NoError(t, err)
	assert.Empty(t, out.CompletedQuests)
	assert.Zero(t, out.ExperienceGained)
}

func TestGenerateDailyQuests_Idempotent(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, quietConfig())

	first, err := e.GenerateDailyQuests(ctx, "alice", noon)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	again, err := e.GenerateDailyQuests(ctx, "alice", noon.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again)

	next, err := e.GenerateDailyQuests(ctx, "alice", noon.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, next, 2)
}

func TestGetActiveQuests_AtCallerTime(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, quietConfig())

	_, err := e.GenerateDailyQuests(ctx, "alice", noon)
	require.NoError(t, err)

	active, err := e.GetActiveQuests(ctx, "alice", noon)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	// The engine clock still says noon; the caller's time decides.
	active, err = e.GetActiveQuests(ctx, "alice", noon.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGenerateWeeklyQuests(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, quietConfig())

	added, err := e.GenerateWeeklyQuests(ctx, "alice", noon)
	require.NoError(t, err)
	assert.Len(t, added, 2)

	again, err := e.GenerateWeeklyQuests(ctx, "alice", noon.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBegin_AutoGeneratesAndExpires(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, nil)

	_, err := e.RecordActivity(ctx, "alice", hardProblem(t, noon))
	require.NoError(t, err)

	active, err := e.GetActiveQuests(ctx, "alice", noon)
	require.NoError(t, err)
	assert.NotEmpty(t, active)

	out, err := e.RecordActivity(ctx, "alice", hardProblem(t, noon.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.Contains(t, out.ExpiredQuests, "daily:2026-10-16:time")
	assert.Positive(t, rec.count(shared.EventQuestExpired))
}

func TestApplyToQuest(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, quietConfig())
	_, err := e.GenerateDailyQuests(ctx, "alice", noon)
	require.NoError(t, err)

	res, out, err := e.ApplyToQuest(ctx, "alice", "missing",
		event(t, activity.KindStudySession, activity.Payload{Minutes: 30}, noon))
	require.NoError(t, err)
	assert.True(t, shared.IsNotFound(res.Reason))
	assert.False(t, res.Progressed)
	assert.Zero(t, out.ExperienceGained)

	res, out, err = e.ApplyToQuest(ctx, "alice", "daily:2026-10-16:time",
		event(t, activity.KindStudySession, activity.Payload{Minutes: 30}, noon))
	require.NoError(t, err)
	assert.True(t, res.QuestCompleted)
	assert.Equal(t, 50, out.ExperienceGained)

	res, _, err = e.ApplyToQuest(ctx, "alice", "daily:2026-10-16:time",
		event(t, activity.KindStudySession, activity.Payload{Minutes: 30}, noon))
	require.NoError(t, err)
	assert.True(t, shared.IsInvalidState(res.Reason))
}

func TestRecordDay_MilestoneIsAchievedOnce(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, quietConfig())

	study := func(date string) Outcome {
		t.Helper()
		out, err := e.RecordDay(ctx, "alice", streak.Day{Date: date, Completed: true, StudyMinutes: 20}, noon)
		require.NoError(t, err)
		return out
	}

	study("2026-10-01")
	study("2026-10-02")
	out := study("2026-10-03")
	require.Len(t, out.Milestones, 1)
	assert.Equal(t, 3, out.Milestones[0].Days)
	assert.Equal(t, 15, out.ExperienceGained)

	// Repeating the date neither counts nor pays again.
	out = study("2026-10-03")
	assert.Empty(t, out.Milestones)
	assert.Zero(t, out.ExperienceGained)

	// Break and rebuild to three days.
	out = study("2026-10-05")
	assert.True(t, out.StreakBroken)
	study("2026-10-06")
	out = study("2026-10-07")
	assert.Empty(t, out.Milestones)

	view, err := e.GetProgression(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(15), view.Progression.TotalExperience)
	assert.Equal(t, int64(6), view.Progression.Economy.Coins)

	r, err := e.GetStreak(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Current)
	assert.Equal(t, 3, r.Longest)
	assert.Equal(t, 1, rec.count(shared.EventMilestoneAchieved))
	assert.Equal(t, 1, rec.count(shared.EventStreakBroken))
}

func TestRecordDay_BadDate(t *testing.T) {
	e, _, _ := newTestEngine(t, quietConfig())
	_, err := e.RecordDay(context.Background(), "alice", streak.Day{Date: "yesterday", Completed: true}, noon)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestGrantRewards_Idempotent(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, quietConfig())

	rewards := []reward.Reward{
		reward.XP(40),
		reward.Coins(25),
		reward.Item("hint", 2),
		reward.Title("Night Scholar", shared.RarityRare),
		reward.Badge("helping_hand", shared.RarityCommon),
		reward.Item("no_such_item", 1),
	}
	out, err := e.GrantRewards(ctx, "alice", "halloween", rewards, noon)
	require.NoError(t, err)
	assert.Equal(t, 40, out.ExperienceGained)
	assert.Len(t, out.Rewards, 5)
	require.Len(t, out.NewBadges, 1)
	assert.Equal(t, "helping_hand", out.NewBadges[0].ID)

	out, err = e.GrantRewards(ctx, "alice", "halloween", rewards, noon.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, out.ExperienceGained)
	assert.Empty(t, out.Rewards)

	view, err := e.GetProgression(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(25), view.Progression.Economy.Coins)
	assert.True(t, view.Progression.Economy.HasTitle("Night Scholar"))

	inv, err := e.GetInventory(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Remaining("hint"))
}

func TestUsePowerUp_RulesAndCooldown(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, quietConfig())

	_, err := e.GrantRewards(ctx, "alice", "starter", []reward.Reward{reward.Item("focus_boost", 2)}, noon)
	require.NoError(t, err)

	res, out, err := e.UsePowerUp(ctx, "alice", "focus_boost", noon)
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, res, *out.PowerUp)

	// Session limit is one.
	res, _, err = e.UsePowerUp(ctx, "alice", "focus_boost", noon.Add(45*time.Minute))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.ErrorIs(t, res.Reason, shared.ErrPowerUpLimited)

	require.NoError(t, e.EndSession(ctx, "alice"))

	// Cooldown is 30 minutes.
	ok, err := e.CanUsePowerUp(ctx, "alice", "focus_boost", noon.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	res, _, err = e.UsePowerUp(ctx, "alice", "focus_boost", noon.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.ErrorIs(t, res.Reason, shared.ErrPowerUpCooling)
	assert.Equal(t, 1, res.Remaining)

	inv, err := e.GetInventory(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, inv.Remaining("focus_boost"))

	res, _, err = e.UsePowerUp(ctx, "alice", "focus_boost", noon.Add(31*time.Minute))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 2, rec.count(shared.EventPowerUpUsed))
}

func TestUsePowerUp_NoStock(t *testing.T) {
	e, _, _ := newTestEngine(t, quietConfig())
	res, _, err := e.UsePowerUp(context.Background(), "alice", "hint", noon)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.ErrorIs(t, res.Reason, shared.ErrPowerUpNoStock)
}

func TestPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New()}
	e, err := New(Deps{Store: store, Clock: shared.FixedClock(noon), Config: quietConfig()})
	require.NoError(t, err)

	_, err = e.RecordActivity(ctx, "alice", hardProblem(t, noon))
	require.Error(t, err)
	assert.True(t, shared.IsPersistence(err))
	assert.True(t, shared.IsRetryable(err))
	assert.ErrorIs(t, err, errDiskFull)

	store.failGet = true
	_, err = e.GetProgression(ctx, "alice")
	require.Error(t, err)
	assert.True(t, shared.IsPersistence(err))
	assert.Contains(t, err.Error(), learner.KeyProgression("alice"))
}

func TestQueries_FreshLearner(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newTestEngine(t, quietConfig())

	view, err := e.GetProgression(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, shared.LearnerID("bob"), view.Progression.LearnerID)
	assert.Equal(t, 1, view.Level.Level)

	quests, err := e.GetActiveQuests(ctx, "bob", noon)
	require.NoError(t, err)
	assert.Empty(t, quests)

	r, err := e.GetStreak(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, r.Current)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
