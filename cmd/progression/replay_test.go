package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learner-progression/internal/application/engine"
	"github.com/alem-hub/learner-progression/internal/domain/shared"
	"github.com/alem-hub/learner-progression/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/learner-progression/pkg/timeutil"
)

const hardProblem = `{"learner":"%s","type":"problem_solved","payload":{"subject":"math","difficulty":8,"accuracy":0.95},"timestamp":"2026-10-16T12:00:00Z"}`

func newReplayer(t *testing.T) *replayer {
	t.Helper()
	eng, err := engine.New(engine.Deps{
		Store:    memory.New(),
		Clock:    shared.FixedClock(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)),
		Calendar: timeutil.UTC,
	})
	require.NoError(t, err)
	return &replayer{
		engine:      eng,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency: 2,
	}
}

func input(lines ...string) string {
	return strings.Join(lines, "\n")
}

func TestReadLines_GroupsByLearner(t *testing.T) {
	in := input(
		strings.ReplaceAll(hardProblem, "%s", "alice"),
		"",
		strings.ReplaceAll(hardProblem, "%s", "bob"),
		strings.ReplaceAll(hardProblem, "%s", "alice"),
	)

	got, err := readLines(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got["alice"], 2)
	require.Len(t, got["bob"], 1)
	assert.Equal(t, 1, got["alice"][0].number)
	assert.Equal(t, 4, got["alice"][1].number)
}

func TestReadLines_Errors(t *testing.T) {
	_, err := readLines(strings.NewReader(`{"learner":`))
	assert.ErrorContains(t, err, "line 1")

	_, err = readLines(strings.NewReader(`{"type":"problem_solved"}`))
	assert.ErrorContains(t, err, "learner is required")
}

func TestReplayer_Run(t *testing.T) {
	var lines []string
	for i := 0; i < 6; i++ {
		lines = append(lines, strings.ReplaceAll(hardProblem, "%s", "alice"))
	}
	lines = append(lines,
		`{"learner":"alice","type":"teleport"}`,
		`{"learner":"alice","op":"juggle"}`,
		`{"learner":"bob","op":"day","day":{"date":"2026-10-15","completed":true}}`,
		`{"learner":"bob","op":"grant","source":"welcome","rewards":[{"kind":"coins","amount":10}]}`,
	)

	byLearner, err := readLines(strings.NewReader(input(lines...)))
	require.NoError(t, err)

	summaries, err := newReplayer(t).run(context.Background(), byLearner)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	alice := summaries[0]
	assert.Equal(t, "alice", alice.Learner)
	assert.Equal(t, 7, alice.Processed)
	assert.Equal(t, 1, alice.Ignored)
	assert.Equal(t, 1, alice.Failed)
	assert.Contains(t, alice.LastErrors[0], `unknown op "juggle"`)
	assert.GreaterOrEqual(t, alice.LevelUps, 1)
	assert.GreaterOrEqual(t, alice.Progress.Level.Level, 2)
	assert.Equal(t, 1, alice.Streak)
	assert.GreaterOrEqual(t, alice.LevelProgress, 0.0)
	assert.Less(t, alice.LevelProgress, 1.0)

	open := make(map[string]float64, len(alice.Quests))
	for _, q := range alice.Quests {
		open[q.ID] = q.Progress
	}
	require.Contains(t, open, "daily:2026-10-16:time")
	assert.Zero(t, open["daily:2026-10-16:time"])
	assert.NotContains(t, open, "daily:2026-10-16:accuracy")

	bob := summaries[1]
	assert.Equal(t, "bob", bob.Learner)
	assert.Equal(t, 2, bob.Processed)
	assert.Zero(t, bob.Failed)
	assert.Equal(t, 1, bob.Streak)
}

func TestReplayer_RunHonorsCancellation(t *testing.T) {
	byLearner, err := readLines(strings.NewReader(strings.ReplaceAll(hardProblem, "%s", "alice")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = newReplayer(t).run(ctx, byLearner)
	assert.ErrorIs(t, err, context.Canceled)
}
