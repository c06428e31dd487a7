package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION REPOSITORY IMPLEMENTATION
// Upserts use INSERT ... ON CONFLICT DO UPDATE so every write replaces the
// row for its key atomically; concurrent writers resolve last-writer-wins.
// ══════════════════════════════════════════════════════════════════════════════

// EvaluationRepository implements evaluation.Repository.
type EvaluationRepository struct {
	db  Querier
	loc *time.Location
}

var _ evaluation.Repository = (*EvaluationRepository)(nil)

// NewEvaluationRepository creates an EvaluationRepository. A nil loc uses the program location.
func NewEvaluationRepository(db Querier, loc *time.Location) *EvaluationRepository {
	if loc == nil {
		loc = timeutil.Location()
	}
	return &EvaluationRepository{db: db, loc: loc}
}

// UpsertWeekly creates or replaces the (student_id, week_start) row.
func (r *EvaluationRepository) UpsertWeekly(ctx context.Context, w *evaluation.WeeklyEvaluation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO weekly_evaluations (
			student_id, week_start, attendance_points, presentation_points,
			deduction_points, total_points, rating, stars
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, week_start) DO UPDATE SET
			attendance_points = EXCLUDED.attendance_points,
			presentation_points = EXCLUDED.presentation_points,
			deduction_points = EXCLUDED.deduction_points,
			total_points = EXCLUDED.total_points,
			rating = EXCLUDED.rating,
			stars = EXCLUDED.stars
	`, w.StudentID, w.WeekStart, w.AttendancePoints, w.PresentationPoints,
		w.DeductionPoints, w.TotalPoints, w.Rating, int(w.Stars))
	return wrap("evaluation", "UpsertWeekly", err)
}

// UpsertMonthly creates or replaces the (student_id, year, month) row.
func (r *EvaluationRepository) UpsertMonthly(ctx context.Context, m *evaluation.MonthlyEvaluation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO monthly_evaluations (student_id, year, month, total_points, rating, stars)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, year, month) DO UPDATE SET
			total_points = EXCLUDED.total_points,
			rating = EXCLUDED.rating,
			stars = EXCLUDED.stars
	`, m.StudentID, m.Year, int(m.Month), m.TotalPoints, m.Rating, int(m.Stars))
	return wrap("evaluation", "UpsertMonthly", err)
}

// UpsertYearly creates or replaces the (student_id, year) row.
func (r *EvaluationRepository) UpsertYearly(ctx context.Context, y *evaluation.YearlyEvaluation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO yearly_evaluations (student_id, year, total_points, rating, stars)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, year) DO UPDATE SET
			total_points = EXCLUDED.total_points,
			rating = EXCLUDED.rating,
			stars = EXCLUDED.stars
	`, y.StudentID, y.Year, y.TotalPoints, y.Rating, int(y.Stars))
	return wrap("evaluation", "UpsertYearly", err)
}

const weeklyColumns = `
	student_id::text, week_start, attendance_points, presentation_points,
	deduction_points, total_points, rating::float8, stars`

// ListWeekly returns weekly rows whose week_start lies in rng, oldest first.
func (r *EvaluationRepository) ListWeekly(ctx context.Context, studentID string, rng timeutil.Range) ([]*evaluation.WeeklyEvaluation, error) {
	rows, err := r.db.Query(ctx, `SELECT`+weeklyColumns+`
		FROM weekly_evaluations
		WHERE student_id = $1 AND week_start >= $2 AND week_start < $3
		ORDER BY week_start
	`, studentID, rng.From, rng.To)
	if err != nil {
		return nil, wrap("evaluation", "ListWeekly", err)
	}

	weeks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*evaluation.WeeklyEvaluation, error) {
		return r.scanWeekly(row)
	})
	if err != nil {
		return nil, wrap("evaluation", "ListWeekly", err)
	}
	return weeks, nil
}

// GetWeekly returns ErrEvaluationNotFound when the row does not exist.
func (r *EvaluationRepository) GetWeekly(ctx context.Context, studentID string, weekStart time.Time) (*evaluation.WeeklyEvaluation, error) {
	row := r.db.QueryRow(ctx, `SELECT`+weeklyColumns+`
		FROM weekly_evaluations
		WHERE student_id = $1 AND week_start = $2
	`, studentID, weekStart)

	w, err := r.scanWeekly(row)
	if err != nil {
		return nil, notFoundOr("evaluation", "GetWeekly", err, shared.ErrEvaluationNotFound)
	}
	return w, nil
}

// GetMonthly returns ErrEvaluationNotFound when the row does not exist.
func (r *EvaluationRepository) GetMonthly(ctx context.Context, studentID string, year int, month time.Month) (*evaluation.MonthlyEvaluation, error) {
	var m evaluation.MonthlyEvaluation
	var monthNum, stars int
	err := r.db.QueryRow(ctx, `
		SELECT student_id::text, year, month, total_points, rating::float8, stars
		FROM monthly_evaluations
		WHERE student_id = $1 AND year = $2 AND month = $3
	`, studentID, year, int(month)).Scan(&m.StudentID, &m.Year, &monthNum, &m.TotalPoints, &m.Rating, &stars)
	if err != nil {
		return nil, notFoundOr("evaluation", "GetMonthly", err, shared.ErrEvaluationNotFound)
	}
	m.Month = time.Month(monthNum)
	m.Stars = evaluation.Stars(stars)
	return &m, nil
}

// GetYearly returns ErrEvaluationNotFound when the row does not exist.
func (r *EvaluationRepository) GetYearly(ctx context.Context, studentID string, year int) (*evaluation.YearlyEvaluation, error) {
	var y evaluation.YearlyEvaluation
	var stars int
	err := r.db.QueryRow(ctx, `
		SELECT student_id::text, year, total_points, rating::float8, stars
		FROM yearly_evaluations
		WHERE student_id = $1 AND year = $2
	`, studentID, year).Scan(&y.StudentID, &y.Year, &y.TotalPoints, &y.Rating, &stars)
	if err != nil {
		return nil, notFoundOr("evaluation", "GetYearly", err, shared.ErrEvaluationNotFound)
	}
	y.Stars = evaluation.Stars(stars)
	return &y, nil
}

func (r *EvaluationRepository) scanWeekly(row pgx.Row) (*evaluation.WeeklyEvaluation, error) {
	var w evaluation.WeeklyEvaluation
	var stars int
	if err := row.Scan(
		&w.StudentID, &w.WeekStart, &w.AttendancePoints, &w.PresentationPoints,
		&w.DeductionPoints, &w.TotalPoints, &w.Rating, &stars,
	); err != nil {
		return nil, err
	}
	w.WeekStart = anchorDate(w.WeekStart, r.loc)
	w.Stars = evaluation.Stars(stars)
	return &w, nil
}
