package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	db  Querier
	loc *time.Location
}

var _ student.Repository = (*StudentRepository)(nil)

// NewStudentRepository creates a StudentRepository. A nil loc uses the program location.
func NewStudentRepository(db Querier, loc *time.Location) *StudentRepository {
	if loc == nil {
		loc = timeutil.Location()
	}
	return &StudentRepository{db: db, loc: loc}
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO students (id, full_name, halaqa_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.FullName, s.HalaqaID, string(s.Status), s.CreatedAt, s.UpdatedAt)
	if IsUniqueViolation(err) {
		return shared.WrapError("student", "Create", shared.ErrInvalidEntity, "student already exists", err)
	}
	return wrap("student", "Create", err)
}

// GetByID returns ErrStudentNotFound when the student does not exist.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id::text, full_name, halaqa_id::text, status,
		       current_week_start, current_weekly_points, current_weekly_rating::float8, current_stars,
		       created_at, updated_at
		FROM students
		WHERE id = $1
	`, id)

	s, err := r.scanStudent(row)
	if err != nil {
		return nil, notFoundOr("student", "GetByID", err, shared.ErrStudentNotFound)
	}
	return s, nil
}

// UpdateSnapshot overwrites the four cached columns. A missing student is not an error.
func (r *StudentRepository) UpdateSnapshot(ctx context.Context, id string, snap student.Snapshot) error {
	var weekStart *time.Time
	if !snap.IsZero() {
		weekStart = &snap.WeekStart
	}
	_, err := r.db.Exec(ctx, `
		UPDATE students SET
			current_week_start = $2,
			current_weekly_points = $3,
			current_weekly_rating = $4,
			current_stars = $5,
			updated_at = NOW()
		WHERE id = $1
	`, id, weekStart, snap.Points, snap.Rating, int(snap.Stars))
	return wrap("student", "UpdateSnapshot", err)
}

// ListIDs returns matching student ids ordered by id.
func (r *StudentRepository) ListIDs(ctx context.Context, opts student.ListOptions) ([]string, error) {
	var halaqa *string
	if opts.HalaqaID != "" {
		halaqa = &opts.HalaqaID
	}
	rows, err := r.db.Query(ctx, `
		SELECT id::text
		FROM students
		WHERE ($1::uuid IS NULL OR halaqa_id = $1::uuid)
		  AND ($2::boolean OR status = 'active')
		ORDER BY id
	`, halaqa, opts.IncludeInactive)
	if err != nil {
		return nil, wrap("student", "ListIDs", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrap("student", "ListIDs", err)
	}
	return ids, nil
}

func (r *StudentRepository) scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var status string
	var weekStart *time.Time
	var stars int

	if err := row.Scan(
		&s.ID, &s.FullName, &s.HalaqaID, &status,
		&weekStart, &s.Snapshot.Points, &s.Snapshot.Rating, &stars,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	s.Status = student.Status(status)
	s.Snapshot.Stars = evaluation.Stars(stars)
	if weekStart != nil {
		s.Snapshot.WeekStart = anchorDate(*weekStart, r.loc)
	}
	return &s, nil
}
