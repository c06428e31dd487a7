package record

import (
	"context"

	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// Reader gives read access to a student's source events.
// Every method returns events whose Date lies in the half-open range r.
type Reader interface {
	ListAttendance(ctx context.Context, studentID string, r timeutil.Range) ([]*AttendanceMark, error)
	ListPresentations(ctx context.Context, studentID string, r timeutil.Range) ([]*Presentation, error)
	ListDeductions(ctx context.Context, studentID string, r timeutil.Range) ([]*Deduction, error)
}

// Writer appends source events. Used for seeding.
type Writer interface {
	AddAttendance(ctx context.Context, m *AttendanceMark) error
	AddPresentation(ctx context.Context, p *Presentation) error
	AddDeduction(ctx context.Context, d *Deduction) error
}
