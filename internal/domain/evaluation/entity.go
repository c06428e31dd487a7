package evaluation

import (
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
)

// Weekly point rules.
const (
	PointsPerAttendance   = 2
	MaxPresentationPoints = 3
	PointsPerPresentation = 1
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyPoints accumulates the point components of one week bucket.
type WeeklyPoints struct {
	PresentCount      int
	PresentationCount int
	DeductionSum      int
}

// AttendancePoints is two points per PRESENT mark.
func (p WeeklyPoints) AttendancePoints() int {
	return p.PresentCount * PointsPerAttendance
}

// PresentationPoints is one point per presentation, capped at three.
func (p WeeklyPoints) PresentationPoints() int {
	return min(MaxPresentationPoints, p.PresentationCount*PointsPerPresentation)
}

// DeductionPoints is the signed sum of deductions (normally negative).
func (p WeeklyPoints) DeductionPoints() int {
	return p.DeductionSum
}

// Total is the component sum floored at zero.
func (p WeeklyPoints) Total() int {
	return max(0, p.AttendancePoints()+p.PresentationPoints()+p.DeductionPoints())
}

// WeeklyEvaluation is the materialised score of one (student, week) bucket.
type WeeklyEvaluation struct {
	StudentID          string
	WeekStart          time.Time
	AttendancePoints   int
	PresentationPoints int
	DeductionPoints    int
	TotalPoints        int
	Rating             float64
	Stars              Stars
}

// NewWeeklyEvaluation scores the accumulated points of the week starting at weekStart.
func NewWeeklyEvaluation(studentID string, weekStart time.Time, points WeeklyPoints) *WeeklyEvaluation {
	total := points.Total()
	score := Rate(float64(total))

	return &WeeklyEvaluation{
		StudentID:          studentID,
		WeekStart:          weekStart,
		AttendancePoints:   points.AttendancePoints(),
		PresentationPoints: points.PresentationPoints(),
		DeductionPoints:    points.DeductionPoints(),
		TotalPoints:        total,
		Rating:             score.Rating,
		Stars:              score.Stars,
	}
}

// Validate checks the weekly invariants.
func (w *WeeklyEvaluation) Validate() error {
	if w.TotalPoints < 0 {
		return shared.ErrNegativeTotal
	}
	if w.Rating < MinRating || w.Rating > MaxRating {
		return shared.ErrInvalidRating
	}
	if w.Stars < MinStars || w.Stars > MaxStars {
		return shared.ErrInvalidStars
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLLUPS
// ══════════════════════════════════════════════════════════════════════════════

// Rollup aggregates a set of weekly evaluations.
type Rollup struct {
	Weeks       int
	TotalPoints int
	Rating      float64
	Stars       Stars
}

// RollupOf sums points and averages ratings of weeks.
// The second result is false when weeks is empty; callers must not persist that rollup.
func RollupOf(weeks []*WeeklyEvaluation) (Rollup, bool) {
	if len(weeks) == 0 {
		return Rollup{}, false
	}

	ratings := make([]float64, 0, len(weeks))
	total := 0
	for _, w := range weeks {
		total += w.TotalPoints
		ratings = append(ratings, w.Rating)
	}
	score := AggregateRatings(ratings)

	return Rollup{
		Weeks:       len(weeks),
		TotalPoints: total,
		Rating:      score.Rating,
		Stars:       score.Stars,
	}, true
}

// MonthlyEvaluation is the rollup of all weeks starting inside one calendar month.
type MonthlyEvaluation struct {
	StudentID   string
	Year        int
	Month       time.Month
	TotalPoints int
	Rating      float64
	Stars       Stars
}

// NewMonthlyEvaluation builds a monthly record from a rollup.
func NewMonthlyEvaluation(studentID string, year int, month time.Month, r Rollup) *MonthlyEvaluation {
	return &MonthlyEvaluation{
		StudentID:   studentID,
		Year:        year,
		Month:       month,
		TotalPoints: r.TotalPoints,
		Rating:      r.Rating,
		Stars:       r.Stars,
	}
}

// YearlyEvaluation is the rollup of all weeks starting inside one calendar year.
type YearlyEvaluation struct {
	StudentID   string
	Year        int
	TotalPoints int
	Rating      float64
	Stars       Stars
}

// NewYearlyEvaluation builds a yearly record from a rollup.
func NewYearlyEvaluation(studentID string, year int, r Rollup) *YearlyEvaluation {
	return &YearlyEvaluation{
		StudentID:   studentID,
		Year:        year,
		TotalPoints: r.TotalPoints,
		Rating:      r.Rating,
		Stars:       r.Stars,
	}
}
