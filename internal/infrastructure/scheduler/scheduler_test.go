package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDailySchedule_Next(t *testing.T) {
	almaty := time.FixedZone("Almaty", 5*3600)
	s := NewDailySchedule(0, 5, almaty)

	before := time.Date(2026, 10, 16, 0, 1, 0, 0, almaty)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 5, 0, 0, almaty), s.Next(before))

	at := time.Date(2026, 10, 16, 0, 5, 0, 0, almaty)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 5, 0, 0, almaty), s.Next(at))

	// 20:00 UTC is already 01:00 the next day in Almaty.
	utc := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 5, 0, 0, almaty), s.Next(utc))
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(time.Hour)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Hour), s.Next(now))
	assert.Equal(t, "@every 1h0m0s", s.String())
}

func TestScheduler_Register(t *testing.T) {
	s := New(Config{Logger: quiet()})
	job := &countingJob{name: "rollover"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "x"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "rollover", jobs[0].Name)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(Config{Logger: quiet()})
	errBoom := errors.New("boom")
	ok := &countingJob{name: "ok"}
	bad := &countingJob{name: "bad", err: errBoom}
	require.NoError(t, s.Register(ok, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(bad, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "bad")
	assert.ErrorIs(t, err, errBoom)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	m := s.Metrics()
	assert.Equal(t, int64(2), m.TotalExecutions)
	assert.Equal(t, int64(1), m.FailuresByJob["bad"])

	jobs := s.ListJobs()
	assert.Equal(t, "bad", jobs[0].Name)
	assert.Equal(t, int64(1), jobs[0].FailCount)
	require.NotNil(t, jobs[0].LastResult)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := New(Config{Logger: quiet(), Tick: 5 * time.Millisecond})
	job := &countingJob{name: "fast"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
