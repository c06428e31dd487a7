package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
)

func TestKeyedLocker_SerialisesSameKey(t *testing.T) {
	l := NewKeyedLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "student:a")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, unlock())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, l.Len())
}

func TestKeyedLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewKeyedLocker()

	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, 2, l.Len())
	require.NoError(t, unlockA())
	require.NoError(t, unlockB())
	require.NoError(t, unlockB())
	assert.Zero(t, l.Len())
}

func TestKeyedLocker_ContextCancelled(t *testing.T) {
	l := NewKeyedLocker()
	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, shared.ErrLockNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock())
	assert.Zero(t, l.Len())
}
