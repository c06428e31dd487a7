package evaluation

import (
	"context"
	"time"

	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// Repository persists evaluation records.
// Every Upsert replaces the row for its key wholesale; nothing is incremented,
// so repeating a recompute with unchanged inputs stores identical rows.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// UpsertWeekly creates or replaces the row keyed by (StudentID, WeekStart).
	UpsertWeekly(ctx context.Context, w *WeeklyEvaluation) error

	// UpsertMonthly creates or replaces the row keyed by (StudentID, Month, Year).
	UpsertMonthly(ctx context.Context, m *MonthlyEvaluation) error

	// UpsertYearly creates or replaces the row keyed by (StudentID, Year).
	UpsertYearly(ctx context.Context, y *YearlyEvaluation) error

	// ListWeekly returns weekly rows whose WeekStart lies in r, ordered by WeekStart.
	ListWeekly(ctx context.Context, studentID string, r timeutil.Range) ([]*WeeklyEvaluation, error)

	// GetWeekly returns ErrEvaluationNotFound when the row does not exist.
	GetWeekly(ctx context.Context, studentID string, weekStart time.Time) (*WeeklyEvaluation, error)

	// GetMonthly returns ErrEvaluationNotFound when the row does not exist.
	GetMonthly(ctx context.Context, studentID string, year int, month time.Month) (*MonthlyEvaluation, error)

	// GetYearly returns ErrEvaluationNotFound when the row does not exist.
	GetYearly(ctx context.Context, studentID string, year int) (*YearlyEvaluation, error)
}
