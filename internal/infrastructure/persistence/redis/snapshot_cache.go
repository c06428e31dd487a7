package redis

import (
	"context"
	"errors"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/pkg/circuitbreaker"
)

// snapshotEntry is the JSON form of a cached snapshot.
type snapshotEntry struct {
	WeekStart time.Time `json:"week_start"`
	Points    int       `json:"points"`
	Rating    float64   `json:"rating"`
	Stars     int       `json:"stars"`
}

// SnapshotCache implements student.SnapshotCache on top of Cache.
// With a breaker attached, calls fail fast while Redis is unreachable.
type SnapshotCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

var _ student.SnapshotCache = (*SnapshotCache)(nil)

// NewSnapshotCache creates a new SnapshotCache. breaker may be nil.
func NewSnapshotCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker) *SnapshotCache {
	return &SnapshotCache{cache: cache, breaker: breaker}
}

// IsCacheFailure reports whether err means Redis itself misbehaved, as
// opposed to a plain miss.
func IsCacheFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrCacheMiss)
}

func (s *SnapshotCache) do(ctx context.Context, fn func(context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	return s.breaker.Execute(ctx, fn)
}

// Get returns the cached snapshot. A miss is reported as ErrCacheMiss
// wrapped in a not-found domain error.
func (s *SnapshotCache) Get(ctx context.Context, studentID string) (student.Snapshot, error) {
	var e snapshotEntry
	err := s.do(ctx, func(ctx context.Context) error {
		return s.cache.Get(ctx, SnapshotKey(studentID), &e)
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return student.Snapshot{}, shared.WrapError("snapshot_cache", "Get", shared.ErrNotFound, "snapshot not cached", err)
		}
		return student.Snapshot{}, shared.WrapError("snapshot_cache", "Get", shared.ErrServiceUnavailable, "redis get failed", err)
	}

	return student.Snapshot{
		WeekStart: e.WeekStart,
		Points:    e.Points,
		Rating:    e.Rating,
		Stars:     evaluation.Stars(e.Stars),
	}, nil
}

func entryOf(snap student.Snapshot) snapshotEntry {
	return snapshotEntry{
		WeekStart: snap.WeekStart,
		Points:    snap.Points,
		Rating:    snap.Rating,
		Stars:     int(snap.Stars),
	}
}

// Set caches snap for ttl.
func (s *SnapshotCache) Set(ctx context.Context, studentID string, snap student.Snapshot, ttl time.Duration) error {
	e := entryOf(snap)
	err := s.do(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, SnapshotKey(studentID), e, ttl)
	})
	if err != nil {
		return shared.WrapError("snapshot_cache", "Set", shared.ErrServiceUnavailable, "redis set failed", err)
	}
	return nil
}

// SetIfAbsent caches snap unless an entry is already present.
func (s *SnapshotCache) SetIfAbsent(ctx context.Context, studentID string, snap student.Snapshot, ttl time.Duration) (bool, error) {
	e := entryOf(snap)
	var stored bool
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		stored, err = s.cache.SetNX(ctx, SnapshotKey(studentID), e, ttl)
		return err
	})
	if err != nil {
		return false, shared.WrapError("snapshot_cache", "SetIfAbsent", shared.ErrServiceUnavailable, "redis setnx failed", err)
	}
	return stored, nil
}

// Invalidate removes the cached snapshot of studentID.
func (s *SnapshotCache) Invalidate(ctx context.Context, studentID string) error {
	err := s.do(ctx, func(ctx context.Context) error {
		return s.cache.Delete(ctx, SnapshotKey(studentID))
	})
	if err != nil {
		return shared.WrapError("snapshot_cache", "Invalidate", shared.ErrServiceUnavailable, "redis del failed", err)
	}
	return nil
}
