package query

import (
	"context"
	"fmt"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET EVALUATION SUMMARY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetEvaluationSummaryQuery selects the week, month and year around ReferenceDate.
type GetEvaluationSummaryQuery struct {
	StudentID     string
	ReferenceDate time.Time
}

// EvaluationSummaryDTO holds whatever evaluations exist for the reference date.
// Missing rows are nil; a nil Monthly or Yearly means no week of that period
// has been evaluated yet.
type EvaluationSummaryDTO struct {
	StudentID    string
	WeekStart    time.Time
	Week         *evaluation.WeeklyEvaluation
	WeeksInMonth []*evaluation.WeeklyEvaluation
	Month        *evaluation.MonthlyEvaluation
	Year         *evaluation.YearlyEvaluation
}

// GetEvaluationSummaryHandler handles GetEvaluationSummaryQuery.
type GetEvaluationSummaryHandler struct {
	evaluations evaluation.Repository
	loc         *time.Location
}

// NewGetEvaluationSummaryHandler creates a handler. A nil loc uses the program location.
func NewGetEvaluationSummaryHandler(evaluations evaluation.Repository, loc *time.Location) *GetEvaluationSummaryHandler {
	if loc == nil {
		loc = timeutil.Location()
	}
	return &GetEvaluationSummaryHandler{evaluations: evaluations, loc: loc}
}

// Handle loads the evaluations. Absent rows are not an error.
func (h *GetEvaluationSummaryHandler) Handle(ctx context.Context, q GetEvaluationSummaryQuery) (*EvaluationSummaryDTO, error) {
	id, err := shared.ParseStudentID(q.StudentID)
	if err != nil {
		return nil, err
	}
	if q.ReferenceDate.IsZero() {
		return nil, shared.ErrZeroReferenceDate
	}
	ref := q.ReferenceDate.In(h.loc)

	dto := &EvaluationSummaryDTO{StudentID: id, WeekStart: evaluation.WeekStart(ref)}

	if dto.Week, err = optional(h.evaluations.GetWeekly(ctx, id, dto.WeekStart)); err != nil {
		return nil, fmt.Errorf("get_evaluation_summary: weekly: %w", err)
	}
	if dto.WeeksInMonth, err = h.evaluations.ListWeekly(ctx, id, timeutil.MonthOf(ref)); err != nil {
		return nil, fmt.Errorf("get_evaluation_summary: weeks: %w", err)
	}
	if dto.Month, err = optional(h.evaluations.GetMonthly(ctx, id, ref.Year(), ref.Month())); err != nil {
		return nil, fmt.Errorf("get_evaluation_summary: monthly: %w", err)
	}
	if dto.Year, err = optional(h.evaluations.GetYearly(ctx, id, ref.Year())); err != nil {
		return nil, fmt.Errorf("get_evaluation_summary: yearly: %w", err)
	}

	return dto, nil
}

// optional turns a not-found error into a nil result.
func optional[T any](v *T, err error) (*T, error) {
	if shared.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}
