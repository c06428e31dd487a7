package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
)

const (
	studentC = "2d8e6c74-9b2a-4f8c-9b2b-4c3f5e6d7a82"
	halaqaY  = "3e9f7d85-ac3b-4a9d-8c3c-5d4a6f7e8b93"
)

func TestRecomputeRoster_Halaqa(t *testing.T) {
	h := newHarness(t)
	h.addStudent(t, studentA, halaqaX)
	h.addStudent(t, studentB, halaqaX)
	h.addStudent(t, studentC, halaqaY)
	h.seedWeek(t, studentA, week2, 5, 0, 0)
	h.seedWeek(t, studentB, week2, 1, 0, 1)

	roster := NewRecomputeRosterHandler(h.store, h.handler, 2, quietLogger())
	stats, err := roster.Handle(context.Background(), RecomputeRosterCommand{HalaqaID: halaqaX, ReferenceDate: week2})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 2, stats.SnapshotUpdates)
	assert.NoError(t, stats.FailureErrors())

	a, err := h.store.GetByID(context.Background(), studentA)
	require.NoError(t, err)
	assert.Equal(t, 10, a.Snapshot.Points)
	b, err := h.store.GetByID(context.Background(), studentB)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Snapshot.Points)
	assert.Zero(t, h.store.WeeklyCount(studentC))
}

func TestRecomputeRoster_InvalidHalaqa(t *testing.T) {
	h := newHarness(t)
	roster := NewRecomputeRosterHandler(h.store, h.handler, 2, quietLogger())

	_, err := roster.Handle(context.Background(), RecomputeRosterCommand{HalaqaID: "circle-7", ReferenceDate: week2})
	assert.ErrorIs(t, err, shared.ErrInvalidHalaqaID)

	_, err = roster.Handle(context.Background(), RecomputeRosterCommand{HalaqaID: halaqaX})
	assert.ErrorIs(t, err, shared.ErrZeroReferenceDate)
}

type countingRecomputer struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
	fail     map[string]error
	seen     []string
}

func (r *countingRecomputer) Handle(_ context.Context, cmd RecomputeStudentStatsCommand) (*RecomputeStudentStatsResult, error) {
	n := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)

	r.mu.Lock()
	if n > r.peak {
		r.peak = n
	}
	r.seen = append(r.seen, cmd.StudentID)
	r.mu.Unlock()

	time.Sleep(2 * time.Millisecond)
	if err := r.fail[cmd.StudentID]; err != nil {
		return nil, err
	}
	return &RecomputeStudentStatsResult{StudentID: cmd.StudentID}, nil
}

func TestRecomputeRoster_BoundedAndCollectsFailures(t *testing.T) {
	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		ids = append(ids, shared.NewID())
	}
	boom := errors.New("storage unavailable")
	rec := &countingRecomputer{fail: map[string]error{ids[3]: boom}}

	roster := NewRecomputeRosterHandler(nil, rec, 3, quietLogger())
	stats, err := roster.Handle(context.Background(), RecomputeRosterCommand{
		StudentIDs:    append(ids, ids[0]),
		ReferenceDate: week2,
	})
	require.NoError(t, err)

	assert.Equal(t, 12, stats.Total)
	assert.Equal(t, 11, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, ids[3], stats.Failures[0].StudentID)
	assert.ErrorIs(t, stats.FailureErrors(), boom)

	assert.LessOrEqual(t, rec.peak, int32(3))
	assert.Len(t, rec.seen, 12)
}

func TestRecomputeRoster_ListsActiveStudentsByDefault(t *testing.T) {
	h := newHarness(t)
	h.addStudent(t, studentA, halaqaX)
	h.addStudent(t, studentC, halaqaY)
	left := &student.Student{ID: studentB, FullName: "Left", HalaqaID: halaqaX, Status: student.StatusLeft}
	require.NoError(t, h.store.Create(context.Background(), left))

	rec := &countingRecomputer{}
	roster := NewRecomputeRosterHandler(h.store, rec, 4, quietLogger())
	stats, err := roster.Handle(context.Background(), RecomputeRosterCommand{ReferenceDate: week2})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Total)
	assert.ElementsMatch(t, []string{studentA, studentC}, rec.seen)
}

func TestRecomputeRoster_CancelledContext(t *testing.T) {
	rec := &countingRecomputer{}
	roster := NewRecomputeRosterHandler(nil, rec, 1, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := roster.Handle(ctx, RecomputeRosterCommand{StudentIDs: []string{studentA, studentB}, ReferenceDate: week2})

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Zero(t, stats.Succeeded)
}
