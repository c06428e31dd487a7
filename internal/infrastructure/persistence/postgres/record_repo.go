package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/record"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements record.Reader and record.Writer.
// Dates are stored as DATE and read back as midnight in loc.
type RecordRepository struct {
	db  Querier
	loc *time.Location
}

var (
	_ record.Reader = (*RecordRepository)(nil)
	_ record.Writer = (*RecordRepository)(nil)
)

// NewRecordRepository creates a RecordRepository. A nil loc uses the program location.
func NewRecordRepository(db Querier, loc *time.Location) *RecordRepository {
	if loc == nil {
		loc = timeutil.Location()
	}
	return &RecordRepository{db: db, loc: loc}
}

// ListAttendance returns the attendance marks dated inside r.
func (r *RecordRepository) ListAttendance(ctx context.Context, studentID string, rng timeutil.Range) ([]*record.AttendanceMark, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, student_id::text, date, status, period
		FROM attendance_marks
		WHERE student_id = $1 AND date >= $2 AND date < $3
		ORDER BY date, id
	`, studentID, rng.From, rng.To)
	if err != nil {
		return nil, wrap("record", "ListAttendance", err)
	}

	marks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*record.AttendanceMark, error) {
		var m record.AttendanceMark
		var status, period string
		if err := row.Scan(&m.ID, &m.StudentID, &m.Date, &status, &period); err != nil {
			return nil, err
		}
		m.Date = anchorDate(m.Date, r.loc)
		m.Status = record.AttendanceStatus(status)
		m.Period = record.Period(period)
		return &m, nil
	})
	if err != nil {
		return nil, wrap("record", "ListAttendance", err)
	}
	return marks, nil
}

// ListPresentations returns the presentations dated inside r.
func (r *RecordRepository) ListPresentations(ctx context.Context, studentID string, rng timeutil.Range) ([]*record.Presentation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, student_id::text, date, hizb, quarter, grade
		FROM presentations
		WHERE student_id = $1 AND date >= $2 AND date < $3
		ORDER BY date, id
	`, studentID, rng.From, rng.To)
	if err != nil {
		return nil, wrap("record", "ListPresentations", err)
	}

	presentations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*record.Presentation, error) {
		var p record.Presentation
		if err := row.Scan(&p.ID, &p.StudentID, &p.Date, &p.Hizb, &p.Quarter, &p.Grade); err != nil {
			return nil, err
		}
		p.Date = anchorDate(p.Date, r.loc)
		return &p, nil
	})
	if err != nil {
		return nil, wrap("record", "ListPresentations", err)
	}
	return presentations, nil
}

// ListDeductions returns the deductions dated inside r.
func (r *RecordRepository) ListDeductions(ctx context.Context, studentID string, rng timeutil.Range) ([]*record.Deduction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, student_id::text, date, points, reason
		FROM deductions
		WHERE student_id = $1 AND date >= $2 AND date < $3
		ORDER BY date, id
	`, studentID, rng.From, rng.To)
	if err != nil {
		return nil, wrap("record", "ListDeductions", err)
	}

	deductions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*record.Deduction, error) {
		var d record.Deduction
		if err := row.Scan(&d.ID, &d.StudentID, &d.Date, &d.Points, &d.Reason); err != nil {
			return nil, err
		}
		d.Date = anchorDate(d.Date, r.loc)
		return &d, nil
	})
	if err != nil {
		return nil, wrap("record", "ListDeductions", err)
	}
	return deductions, nil
}

// AddAttendance inserts a mark, generating its id when empty.
func (r *RecordRepository) AddAttendance(ctx context.Context, m *record.AttendanceMark) error {
	if m.ID == "" {
		m.ID = shared.NewID()
	}
	if m.Period == "" {
		m.Period = record.PeriodMorning
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO attendance_marks (id, student_id, date, status, period)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.StudentID, m.Date, string(m.Status), string(m.Period))
	return wrap("record", "AddAttendance", err)
}

// AddPresentation inserts a presentation, generating its id when empty.
func (r *RecordRepository) AddPresentation(ctx context.Context, p *record.Presentation) error {
	if p.ID == "" {
		p.ID = shared.NewID()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO presentations (id, student_id, date, hizb, quarter, grade)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.StudentID, p.Date, p.Hizb, p.Quarter, p.Grade)
	return wrap("record", "AddPresentation", err)
}

// AddDeduction inserts a deduction, generating its id when empty.
func (r *RecordRepository) AddDeduction(ctx context.Context, d *record.Deduction) error {
	if d.ID == "" {
		d.ID = shared.NewID()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO deductions (id, student_id, date, points, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.StudentID, d.Date, d.Points, d.Reason)
	return wrap("record", "AddDeduction", err)
}

// anchorDate moves a scanned DATE (UTC midnight) to midnight of the same day in loc.
func anchorDate(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}
