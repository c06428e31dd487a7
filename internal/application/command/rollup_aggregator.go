package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/pkg/logger"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLLUP AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// RollupAggregator derives monthly and yearly evaluations from stored weekly rows.
type RollupAggregator struct {
	evaluations evaluation.Repository
	logger      *slog.Logger
}

// NewRollupAggregator creates a RollupAggregator.
func NewRollupAggregator(evaluations evaluation.Repository, log *slog.Logger) *RollupAggregator {
	return &RollupAggregator{
		evaluations: evaluations,
		logger:      logger.OrDefault(log),
	}
}

// RecomputeMonthly rolls up the weeks starting inside referenceDate's calendar month.
// With no such weeks nothing is written and (nil, nil) is returned; an existing
// monthly row is left as it is.
func (a *RollupAggregator) RecomputeMonthly(ctx context.Context, studentID string, referenceDate time.Time) (*evaluation.MonthlyEvaluation, error) {
	rollup, ok, err := a.rollup(ctx, studentID, timeutil.MonthOf(referenceDate))
	if err != nil {
		return nil, fmt.Errorf("monthly: %w", err)
	}
	if !ok {
		a.logger.Debug("no weekly rows in month, skipping",
			logger.StudentID(studentID), logger.Date("month", timeutil.StartOfMonth(referenceDate)))
		return nil, nil
	}

	monthly := evaluation.NewMonthlyEvaluation(studentID, referenceDate.Year(), referenceDate.Month(), rollup)
	if err := a.evaluations.UpsertMonthly(ctx, monthly); err != nil {
		return nil, fmt.Errorf("monthly: upsert: %w", err)
	}
	return monthly, nil
}

// RecomputeYearly is RecomputeMonthly over referenceDate's calendar year.
func (a *RollupAggregator) RecomputeYearly(ctx context.Context, studentID string, referenceDate time.Time) (*evaluation.YearlyEvaluation, error) {
	rollup, ok, err := a.rollup(ctx, studentID, timeutil.YearOf(referenceDate))
	if err != nil {
		return nil, fmt.Errorf("yearly: %w", err)
	}
	if !ok {
		a.logger.Debug("no weekly rows in year, skipping",
			logger.StudentID(studentID), slog.Int("year", referenceDate.Year()))
		return nil, nil
	}

	yearly := evaluation.NewYearlyEvaluation(studentID, referenceDate.Year(), rollup)
	if err := a.evaluations.UpsertYearly(ctx, yearly); err != nil {
		return nil, fmt.Errorf("yearly: upsert: %w", err)
	}
	return yearly, nil
}

func (a *RollupAggregator) rollup(ctx context.Context, studentID string, r timeutil.Range) (evaluation.Rollup, bool, error) {
	weeks, err := a.evaluations.ListWeekly(ctx, studentID, r)
	if err != nil {
		return evaluation.Rollup{}, false, fmt.Errorf("list weekly %s: %w", r, err)
	}
	rollup, ok := evaluation.RollupOf(weeks)
	return rollup, ok, nil
}
