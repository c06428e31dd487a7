package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testJob struct {
	name  string
	runs  atomic.Int32
	block chan struct{}
	err   error
}

func (j *testJob) Name() string        { return j.name }
func (j *testJob) Description() string { return "test job" }

func (j *testJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func newTestScheduler(clock *manualClock) *Scheduler {
	return New(Config{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:        clock,
		TickInterval: 2 * time.Millisecond,
	})
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := newTestScheduler(&manualClock{now: wed})

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&testJob{name: "a"}, nil), ErrNilSchedule)
	require.NoError(t, s.Register(&testJob{name: "a"}, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(&testJob{name: "a"}, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, wed.Add(time.Minute), jobs[0].NextRun)
	assert.Equal(t, "@every 1m0s", jobs[0].Schedule)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	clock := &manualClock{now: wed}
	s := newTestScheduler(clock)
	job := &testJob{name: "tick"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, job.runs.Load())

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	history := s.History(0)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success())
	assert.False(t, history[0].Manual)
	assert.Equal(t, wed.Add(2*time.Minute), s.ListJobs()[0].NextRun)
}

func TestScheduler_NoOverlap(t *testing.T) {
	clock := &manualClock{now: wed}
	s := newTestScheduler(clock)
	job := &testJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.Start(context.Background()))

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(job.block)
	require.NoError(t, s.Stop())
}

func TestScheduler_StopCancelsRunningJobs(t *testing.T) {
	clock := &manualClock{now: wed}
	s := newTestScheduler(clock)
	job := &testJob{name: "blocked", block: make(chan struct{})}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.Start(context.Background()))

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.Stop())
	history := s.History(1)
	require.Len(t, history, 1)
	assert.ErrorIs(t, history[0].Err, context.Canceled)
	assert.Equal(t, int64(1), s.ListJobs()[0].FailCount)
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler(&manualClock{now: wed})
	boom := errors.New("boom")
	require.NoError(t, s.Register(&testJob{name: "ok"}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(&testJob{name: "bad", err: boom}, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "bad")
	assert.ErrorIs(t, err, boom)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "bad", jobs[0].Name)
	assert.Equal(t, int64(1), jobs[0].FailCount)
	assert.Equal(t, int64(1), jobs[1].RunCount)
	assert.Len(t, s.History(10), 2)
}
