package command

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/record"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/internal/infrastructure/lock"
	"github.com/halaqa-hub/evaluation-engine/internal/infrastructure/persistence/memory"
)

const (
	studentA = "0b6c4a52-7f0e-4d6a-9f0f-2a1d3c4b5e60"
	studentB = "1c7d5b63-8a1f-4e7b-8a1a-3b2e4d5c6f71"
	halaqaX  = "9a1e2b3c-4d5e-4f60-8a7b-1c2d3e4f5a6b"
)

// May 2024: weeks start on the 4th, 11th, 18th and 25th.
var (
	week1 = time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC)
	week2 = time.Date(2024, time.May, 11, 0, 0, 0, 0, time.UTC)
	now   = time.Date(2024, time.May, 15, 14, 0, 0, 0, time.UTC)
)

type evaluationRepo = evaluation.Repository

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCache struct {
	mu     sync.Mutex
	snaps  map[string]student.Snapshot
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{snaps: make(map[string]student.Snapshot)}
}

func (c *fakeCache) Get(_ context.Context, id string) (student.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[id]
	if !ok {
		return student.Snapshot{}, shared.ErrNotFound
	}
	return s, nil
}

func (c *fakeCache) Set(_ context.Context, id string, snap student.Snapshot, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.snaps[id] = snap
	return nil
}

func (c *fakeCache) SetIfAbsent(_ context.Context, id string, snap student.Snapshot, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return false, c.setErr
	}
	if _, ok := c.snaps[id]; ok {
		return false, nil
	}
	c.snaps[id] = snap
	return true, nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snaps, id)
	return nil
}

type harness struct {
	store   *memory.Store
	cache   *fakeCache
	handler *RecomputeStudentStatsHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithRepo(t, nil)
}

// newHarnessWithRepo lets a test wrap the evaluation repository.
func newHarnessWithRepo(t *testing.T, wrap func(*memory.Store) evaluationRepo) *harness {
	t.Helper()

	store := memory.NewStore()
	cache := newFakeCache()
	var evals evaluationRepo = store
	if wrap != nil {
		evals = wrap(store)
	}

	weekly := NewWeeklyAggregator(store, evals, store, WeeklyAggregatorConfig{Cache: cache, Logger: quietLogger()})
	rollups := NewRollupAggregator(evals, quietLogger())
	handler := NewRecomputeStudentStatsHandler(weekly, rollups, lock.NewKeyedLocker(), RecomputeStudentStatsConfig{
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		Location:      time.UTC,
		Clock:         shared.FixedClock(now),
		Logger:        quietLogger(),
	})

	return &harness{store: store, cache: cache, handler: handler}
}

func (h *harness) addStudent(t *testing.T, id, halaqaID string) {
	t.Helper()
	st, err := student.NewStudent(id, "Student "+id[:4], halaqaID, now)
	require.NoError(t, err)
	require.NoError(t, h.store.Create(context.Background(), st))
}

// seedWeek adds present marks, presentations and deductions spread over the
// week starting at weekStart.
func (h *harness) seedWeek(t *testing.T, id string, weekStart time.Time, present, absent, presentations int, deductions ...int) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < present; i++ {
		require.NoError(t, h.store.AddAttendance(ctx, &record.AttendanceMark{
			ID: shared.NewID(), StudentID: id, Date: weekStart.AddDate(0, 0, i%7).Add(8 * time.Hour),
			Status: record.StatusPresent, Period: record.PeriodMorning,
		}))
	}
	for i := 0; i < absent; i++ {
		require.NoError(t, h.store.AddAttendance(ctx, &record.AttendanceMark{
			ID: shared.NewID(), StudentID: id, Date: weekStart.AddDate(0, 0, i%7).Add(18 * time.Hour),
			Status: record.StatusAbsent, Period: record.PeriodEvening,
		}))
	}
	for i := 0; i < presentations; i++ {
		hizb := i + 1
		require.NoError(t, h.store.AddPresentation(ctx, &record.Presentation{
			ID: shared.NewID(), StudentID: id, Date: weekStart.AddDate(0, 0, i%7).Add(10 * time.Hour), Hizb: &hizb,
		}))
	}
	for i, p := range deductions {
		require.NoError(t, h.store.AddDeduction(ctx, &record.Deduction{
			ID: shared.NewID(), StudentID: id, Date: weekStart.AddDate(0, 0, i%7).Add(12 * time.Hour),
			Points: p, Reason: "late",
		}))
	}
}
