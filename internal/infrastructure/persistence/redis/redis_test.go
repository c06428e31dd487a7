package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/pkg/circuitbreaker"
)

const studentID = "0b6c4a52-7f08-4d6a-8e09-2a1d3c4b5e60"

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client, "test:"), mr
}

func TestCache_SetGetDelete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	assert.True(t, mr.Exists("test:k"))

	ttl, err := c.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	var got map[string]int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)

	assert.ErrorIs(t, c.Set(ctx, "", 1, 0), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
}

func TestCache_SetNX(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	var got int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got)
}

func TestCache_CorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("test:bad", "{not json"))

	var v map[string]int
	assert.ErrorIs(t, c.Get(context.Background(), "bad", &v), ErrCacheSerialization)
}

func TestSnapshotCache_RoundTripAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	sc := NewSnapshotCache(c, nil)
	ctx := context.Background()

	_, err := sc.Get(ctx, studentID)
	assert.True(t, shared.IsNotFound(err))

	snap := student.Snapshot{
		WeekStart: time.Date(2024, time.May, 11, 0, 0, 0, 0, time.UTC),
		Points:    10,
		Rating:    6.7,
		Stars:     3,
	}
	require.NoError(t, sc.Set(ctx, studentID, snap, time.Hour))

	got, err := sc.Get(ctx, studentID)
	require.NoError(t, err)
	assert.True(t, snap.WeekStart.Equal(got.WeekStart))
	assert.Equal(t, snap.Points, got.Points)
	assert.Equal(t, snap.Rating, got.Rating)
	assert.Equal(t, snap.Stars, got.Stars)

	mr.FastForward(2 * time.Hour)
	_, err = sc.Get(ctx, studentID)
	assert.True(t, shared.IsNotFound(err))
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)
	sc := NewSnapshotCache(c, nil)
	ctx := context.Background()

	require.NoError(t, sc.Set(ctx, studentID, student.Snapshot{Points: 4}, 0))
	require.NoError(t, sc.Invalidate(ctx, studentID))

	_, err := sc.Get(ctx, studentID)
	assert.True(t, shared.IsNotFound(err))
}

func TestSnapshotCache_SetIfAbsentKeepsExisting(t *testing.T) {
	c, _ := newTestCache(t)
	sc := NewSnapshotCache(c, nil)
	ctx := context.Background()

	require.NoError(t, sc.Set(ctx, studentID, student.Snapshot{Points: 12}, time.Minute))

	stored, err := sc.SetIfAbsent(ctx, studentID, student.Snapshot{Points: 10}, time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := sc.Get(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Points)

	require.NoError(t, sc.Invalidate(ctx, studentID))
	stored, err = sc.SetIfAbsent(ctx, studentID, student.Snapshot{Points: 10}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestSnapshotCache_Unavailable(t *testing.T) {
	c, mr := newTestCache(t)
	sc := NewSnapshotCache(c, nil)
	mr.Close()

	err := sc.Set(context.Background(), studentID, student.Snapshot{Points: 1}, time.Minute)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.True(t, shared.IsRetryable(err))
}

func TestSnapshotCache_BreakerOpensOnOutage(t *testing.T) {
	c, mr := newTestCache(t)
	breaker := circuitbreaker.CacheBreaker(IsCacheFailure, nil)
	sc := NewSnapshotCache(c, breaker)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := sc.Get(ctx, studentID)
		assert.True(t, shared.IsNotFound(err))
	}
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())

	mr.Close()
	for i := 0; i < 3; i++ {
		_ = sc.Set(ctx, studentID, student.Snapshot{Points: 1}, time.Minute)
	}
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	_, err := sc.Get(ctx, studentID)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.True(t, shared.IsRetryable(err))
}

func TestLocker_MutualExclusion(t *testing.T) {
	c, _ := newTestCache(t)
	l := NewLocker(c, time.Second, time.Millisecond)

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "student:"+studentID)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&peak) {
				atomic.StoreInt32(&peak, n)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, unlock())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak)
}

func TestLocker_WaitTimesOut(t *testing.T) {
	c, _ := newTestCache(t)
	l := NewLocker(c, time.Minute, time.Millisecond)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer func() { _ = unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, shared.ErrLockNotAcquired)
}

func TestLocker_ReleaseAfterExpiryDoesNotStealLock(t *testing.T) {
	c, mr := newTestCache(t)
	l := NewLocker(c, time.Second, time.Millisecond)
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	unlockB, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	assert.ErrorIs(t, unlockA(), ErrLockLost)
	assert.True(t, mr.Exists("test:lock:k"))
	assert.NoError(t, unlockB())
	assert.False(t, mr.Exists("test:lock:k"))
}
