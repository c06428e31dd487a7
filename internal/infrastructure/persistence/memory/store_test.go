package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/record"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

const studentA = "0b6c4a52-7f0e-4d6a-9f0f-2a1d3c4b5e60"

func TestStore_RecordsFilteredByHalfOpenRange(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	from := time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddAttendance(ctx, &record.AttendanceMark{StudentID: studentA, Date: from, Status: record.StatusPresent}))
	require.NoError(t, s.AddAttendance(ctx, &record.AttendanceMark{StudentID: studentA, Date: from.AddDate(0, 0, 7), Status: record.StatusPresent}))
	require.NoError(t, s.AddAttendance(ctx, &record.AttendanceMark{StudentID: "other", Date: from, Status: record.StatusPresent}))

	marks, err := s.ListAttendance(ctx, studentA, timeutil.DaysFrom(from, 7))
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.True(t, marks[0].Date.Equal(from))
}

func TestStore_UpsertWeeklyReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ws := time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertWeekly(ctx, &evaluation.WeeklyEvaluation{StudentID: studentA, WeekStart: ws, TotalPoints: 4}))
	require.NoError(t, s.UpsertWeekly(ctx, &evaluation.WeeklyEvaluation{StudentID: studentA, WeekStart: ws, TotalPoints: 9}))

	got, err := s.GetWeekly(ctx, studentA, ws)
	require.NoError(t, err)
	assert.Equal(t, 9, got.TotalPoints)
	assert.Equal(t, 1, s.WeeklyCount(studentA))

	_, err = s.GetMonthly(ctx, studentA, 2024, time.May)
	assert.True(t, shared.IsNotFound(err))
}

func TestStore_ListWeeklyOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	first := time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC)

	june := first.AddDate(0, 0, 28)
	for _, d := range []int{14, 0, 28, 7, 21} {
		require.NoError(t, s.UpsertWeekly(ctx, &evaluation.WeeklyEvaluation{StudentID: studentA, WeekStart: first.AddDate(0, 0, d)}))
	}

	weeks, err := s.ListWeekly(ctx, studentA, timeutil.MonthOf(first))
	require.NoError(t, err)
	require.Len(t, weeks, 4)
	for i := 1; i < len(weeks); i++ {
		assert.True(t, weeks[i-1].WeekStart.Before(weeks[i].WeekStart))
	}
	for _, w := range weeks {
		assert.False(t, w.WeekStart.Equal(june), "week starting %s belongs to June", june)
	}

	weeks, err = s.ListWeekly(ctx, studentA, timeutil.MonthOf(june))
	require.NoError(t, err)
	require.Len(t, weeks, 1)
	assert.True(t, weeks[0].WeekStart.Equal(june))
}

func TestStore_Students(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2024, time.May, 8, 0, 0, 0, 0, time.UTC)

	st, err := student.NewStudent(studentA, "Amina", "9a1e2b3c-4d5e-4f60-8a7b-1c2d3e4f5a6b", now)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, st))
	assert.Error(t, s.Create(ctx, st))

	snap := student.Snapshot{WeekStart: now, Points: 3, Rating: 2.0, Stars: 1}
	require.NoError(t, s.UpdateSnapshot(ctx, studentA, snap))
	require.NoError(t, s.UpdateSnapshot(ctx, "missing", snap))

	got, err := s.GetByID(ctx, studentA)
	require.NoError(t, err)
	assert.Equal(t, snap, got.Snapshot)

	ids, err := s.ListIDs(ctx, student.ListOptions{HalaqaID: st.HalaqaID})
	require.NoError(t, err)
	assert.Equal(t, []string{studentA}, ids)

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
}
