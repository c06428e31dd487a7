// Package command contains write operations (CQRS - Commands).
// Commands recompute evaluations from source records and persist them.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/record"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/pkg/logger"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyOutcome is the result of one weekly recompute.
type WeeklyOutcome struct {
	Evaluation *evaluation.WeeklyEvaluation

	// SnapshotUpdated is true when the week is the current one and the
	// student's cached fields were overwritten.
	SnapshotUpdated bool
}

// WeeklyAggregator computes and stores the weekly evaluation of one week bucket.
type WeeklyAggregator struct {
	records     record.Reader
	evaluations evaluation.Repository
	students    student.Repository
	cache       student.SnapshotCache
	cacheTTL    time.Duration
	logger      *slog.Logger
}

// WeeklyAggregatorConfig configures the optional snapshot cache.
type WeeklyAggregatorConfig struct {
	// Cache is refreshed after the snapshot columns are written. May be nil.
	Cache    student.SnapshotCache
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// NewWeeklyAggregator creates a WeeklyAggregator.
func NewWeeklyAggregator(
	records record.Reader,
	evaluations evaluation.Repository,
	students student.Repository,
	config WeeklyAggregatorConfig,
) *WeeklyAggregator {
	if config.CacheTTL <= 0 {
		config.CacheTTL = 24 * time.Hour
	}
	return &WeeklyAggregator{
		records:     records,
		evaluations: evaluations,
		students:    students,
		cache:       config.Cache,
		cacheTTL:    config.CacheTTL,
		logger:      logger.OrDefault(config.Logger),
	}
}

// Recompute rebuilds the weekly evaluation of the week containing referenceDate.
// The row is replaced, never incremented. The student snapshot is only touched
// when that week is the week containing now.
func (a *WeeklyAggregator) Recompute(ctx context.Context, studentID string, referenceDate, now time.Time) (*WeeklyOutcome, error) {
	weekStart := evaluation.WeekStart(referenceDate)
	window := timeutil.DaysFrom(weekStart, evaluation.DaysPerWeek)

	points, err := a.collect(ctx, studentID, window)
	if err != nil {
		return nil, err
	}

	weekly := evaluation.NewWeeklyEvaluation(studentID, weekStart, points)
	if err := weekly.Validate(); err != nil {
		return nil, fmt.Errorf("weekly: %w", err)
	}

	if err := a.evaluations.UpsertWeekly(ctx, weekly); err != nil {
		return nil, fmt.Errorf("weekly: upsert: %w", err)
	}

	outcome := &WeeklyOutcome{Evaluation: weekly}
	if !evaluation.IsCurrentWeek(weekStart, now) {
		return outcome, nil
	}

	snap := student.SnapshotOf(weekly)
	if err := a.students.UpdateSnapshot(ctx, studentID, snap); err != nil {
		return nil, fmt.Errorf("weekly: update snapshot: %w", err)
	}
	outcome.SnapshotUpdated = true
	a.refreshCache(ctx, studentID, snap)

	return outcome, nil
}

func (a *WeeklyAggregator) collect(ctx context.Context, studentID string, window timeutil.Range) (evaluation.WeeklyPoints, error) {
	var points evaluation.WeeklyPoints

	marks, err := a.records.ListAttendance(ctx, studentID, window)
	if err != nil {
		return points, fmt.Errorf("weekly: list attendance: %w", err)
	}
	presentations, err := a.records.ListPresentations(ctx, studentID, window)
	if err != nil {
		return points, fmt.Errorf("weekly: list presentations: %w", err)
	}
	deductions, err := a.records.ListDeductions(ctx, studentID, window)
	if err != nil {
		return points, fmt.Errorf("weekly: list deductions: %w", err)
	}

	points.PresentCount = record.CountPresent(marks)
	points.PresentationCount = len(presentations)
	points.DeductionSum = record.SumPoints(deductions)
	return points, nil
}

// refreshCache never fails the stage: the columns are already committed.
// A cache that cannot be written is invalidated so readers fall back to storage.
func (a *WeeklyAggregator) refreshCache(ctx context.Context, studentID string, snap student.Snapshot) {
	if a.cache == nil {
		return
	}
	err := a.cache.Set(ctx, studentID, snap, a.cacheTTL)
	if err == nil {
		return
	}
	a.logger.Warn("failed to cache snapshot", logger.StudentID(studentID), slog.Any("error", err))
	if err := a.cache.Invalidate(ctx, studentID); err != nil {
		a.logger.Error("failed to invalidate snapshot cache", logger.StudentID(studentID), slog.Any("error", err))
	}
}
