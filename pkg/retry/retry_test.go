package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("connection reset"))
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	boom := errors.New("constraint violation")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_ReturnsUnwrappedErrorAfterLastAttempt(t *testing.T) {
	timeout := errors.New("timeout")
	var retried []int
	err := Do(context.Background(), func(ctx context.Context) error {
		return Retryable(timeout)
	},
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			retried = append(retried, attempt)
		}),
	)

	assert.Same(t, timeout, err)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_RetryIfOverridesDefault(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	err := StorageRetrier(2, func(err error) bool { return errors.Is(err, transient) }).
		Do(context.Background(), func(ctx context.Context) error {
			calls++
			return transient
		})

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 2, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
