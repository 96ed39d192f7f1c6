package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/learner-progression/internal/application/engine"
	"github.com/alem-hub/learner-progression/internal/domain/activity"
	"github.com/alem-hub/learner-progression/internal/domain/learner"
	"github.com/alem-hub/learner-progression/internal/domain/reward"
	"github.com/alem-hub/learner-progression/internal/domain/streak"
)

// Replay operations. An empty op means "activity".
const (
	opActivity   = "activity"
	opDay        = "day"
	opPowerUp    = "powerup"
	opEndSession = "end_session"
	opGrant      = "grant"
	opQuest      = "quest"
)

// line is one JSONL input record.
type line struct {
	Op        string          `json:"op,omitempty"`
	Learner   string          `json:"learner"`
	Type      string          `json:"type,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`

	// Day is used by op "day".
	Day *streak.Day `json:"day,omitempty"`

	// PowerUp is used by op "powerup".
	PowerUp string `json:"powerup,omitempty"`

	// Quest is used by op "quest".
	Quest string `json:"quest,omitempty"`

	// Source and Rewards are used by op "grant".
	Source  string          `json:"source,omitempty"`
	Rewards []reward.Reward `json:"rewards,omitempty"`

	number int
}

// summary is the per-learner result written to stdout.
type summary struct {
	Learner    string       `json:"learner"`
	Processed  int          `json:"processed"`
	Failed     int          `json:"failed"`
	Ignored    int          `json:"ignored"`
	Rewards    int          `json:"rewards"`
	LevelUps   int          `json:"level_ups"`
	NewBadges  int          `json:"new_badges"`
	Completed  int          `json:"completed_quests"`
	Streak     int          `json:"streak"`
	Progress   learner.View `json:"progress"`
	LastErrors []string     `json:"errors,omitempty"`

	// LevelProgress - share of the current level completed.
	LevelProgress float64 `json:"level_progress"`

	// Quests - quests still open at the learner's last event.
	Quests []questStatus `json:"active_quests,omitempty"`
}

type questStatus struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Progress float64 `json:"progress"`
}

// readLines parses JSONL input grouped by learner, keeping file order
// within each learner. Blank lines are skipped.
func readLines(r io.Reader) (map[string][]line, error) {
	byLearner := make(map[string][]line)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	n := 0
	for sc.Scan() {
		n++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if l.Learner == "" {
			return nil, fmt.Errorf("line %d: learner is required", n)
		}
		l.number = n
		byLearner[l.Learner] = append(byLearner[l.Learner], l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return byLearner, nil
}

// replayer feeds input lines to the engine.
type replayer struct {
	engine      *engine.Engine
	log         *slog.Logger
	concurrency int
}

// run replays every learner's lines, learners in parallel and each
// learner's lines in order. Summaries are sorted by learner.
func (r *replayer) run(ctx context.Context, byLearner map[string][]line) ([]summary, error) {
	ids := make([]string, 0, len(byLearner))
	for id := range byLearner {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]summary, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.concurrency, 1))
	for i, id := range ids {
		g.Go(func() error {
			s, err := r.replayLearner(gctx, id, byLearner[id])
			if err != nil {
				return fmt.Errorf("learner %s: %w", id, err)
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *replayer) replayLearner(ctx context.Context, id string, lines []line) (summary, error) {
	s := summary{Learner: id}
	var last time.Time
	for _, l := range lines {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if l.Timestamp.After(last) {
			last = l.Timestamp
		}
		out, err := r.apply(ctx, l)
		if err != nil {
			s.Failed++
			s.LastErrors = append(s.LastErrors, fmt.Sprintf("line %d: %v", l.number, err))
			r.log.Warn("replay line failed", "learner_id", id, "line", l.number, "error", err)
			continue
		}
		s.Processed++
		s.tally(out)
		r.notify(out)
	}

	view, err := r.engine.GetProgression(ctx, id)
	if err != nil {
		return s, err
	}
	s.Progress = view
	s.LevelProgress = view.Level.Progress()

	quests, err := r.engine.GetActiveQuests(ctx, id, last)
	if err != nil {
		return s, err
	}
	for _, q := range quests {
		s.Quests = append(s.Quests, questStatus{ID: q.ID, Title: q.Title, Progress: q.Progress()})
	}

	rec, err := r.engine.GetStreak(ctx, id)
	if err != nil {
		return s, err
	}
	s.Streak = rec.Current
	if err := r.engine.EndSession(ctx, id); err != nil {
		return s, err
	}
	return s, nil
}

func (r *replayer) apply(ctx context.Context, l line) (engine.Outcome, error) {
	switch l.Op {
	case "", opActivity:
		return r.engine.RecordActivity(ctx, l.Learner, activity.Event{Type: l.Type, Payload: l.Payload, Timestamp: l.Timestamp})

	case opDay:
		if l.Day == nil {
			return engine.Outcome{}, fmt.Errorf("op %q needs a day", l.Op)
		}
		return r.engine.RecordDay(ctx, l.Learner, *l.Day, l.Timestamp)

	case opPowerUp:
		res, out, err := r.engine.UsePowerUp(ctx, l.Learner, l.PowerUp, l.Timestamp)
		if err == nil && !res.Applied {
			r.log.Info("power-up refused", "learner_id", l.Learner, "powerup_id", l.PowerUp, "reason", res.Reason)
		}
		return out, err

	case opEndSession:
		return engine.Outcome{}, r.engine.EndSession(ctx, l.Learner)

	case opGrant:
		return r.engine.GrantRewards(ctx, l.Learner, l.Source, l.Rewards, l.Timestamp)

	case opQuest:
		_, out, err := r.engine.ApplyToQuest(ctx, l.Learner, l.Quest,
			activity.Event{Type: l.Type, Payload: l.Payload, Timestamp: l.Timestamp})
		return out, err

	default:
		return engine.Outcome{}, fmt.Errorf("unknown op %q", l.Op)
	}
}

// notify logs what a learner would be told about.
func (r *replayer) notify(out engine.Outcome) {
	if out.LeveledUp() {
		r.log.Info("level up", "learner_id", out.LearnerID, "from", out.PreviousLevel, "to", out.Level.Level)
	}
	for _, b := range out.NewBadges {
		r.log.Info("badge earned", "learner_id", out.LearnerID, "badge_id", b.ID)
	}
	for _, q := range out.CompletedQuests {
		r.log.Info("quest completed", "learner_id", out.LearnerID, "quest_id", q.ID)
	}
	for _, m := range out.Milestones {
		r.log.Info("streak milestone", "learner_id", out.LearnerID, "days", m.Days)
	}
}

func (s *summary) tally(out engine.Outcome) {
	if out.Ignored {
		s.Ignored++
	}
	if out.LeveledUp() {
		s.LevelUps++
	}
	s.Rewards += len(out.Rewards)
	s.NewBadges += len(out.NewBadges)
	s.Completed += len(out.CompletedQuests)
}
