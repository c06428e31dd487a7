package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := New(Settings{
		Name:     "test",
		Failures: 2,
		Cooldown: time.Minute,
		Now:      clock.Now,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock.now = clock.now.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cb := New(Settings{Name: "test", Failures: 1, Cooldown: time.Second, Now: clock.Now})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.now = clock.now.Add(time.Second)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenProbeBudget(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cb := New(Settings{Name: "test", Failures: 1, Cooldown: time.Second, Now: clock.Now})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.now = clock.now.Add(time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		return cb.Execute(ctx, succeed)
	})
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	miss := errors.New("miss")
	cb := CacheBreaker(func(err error) bool { return !errors.Is(err, miss) }, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return miss })
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "snapshot-cache", cb.Name())

	cb = New(Settings{})
	assert.Equal(t, 5, cb.settings.Failures)
	assert.Equal(t, 30*time.Second, cb.settings.Cooldown)
	assert.Equal(t, "unknown", State(9).String())
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb := New(Settings{Name: "test", Failures: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
}
