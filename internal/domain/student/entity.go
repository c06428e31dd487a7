// Package student holds the student entity as the evaluation engine sees it:
// roster membership and the cached snapshot of the current week.
package student

import (
	"strings"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the student's standing in the program.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusGraduated Status = "graduated"
	StatusLeft      Status = "left"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusGraduated, StatusLeft:
		return true
	default:
		return false
	}
}

// IsEnrolled reports whether the student still belongs to a roster.
func (s Status) IsEnrolled() bool {
	return s == StatusActive || s == StatusInactive
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot mirrors the weekly evaluation of the week containing "now".
// A zero WeekStart means the student has never been evaluated.
type Snapshot struct {
	WeekStart time.Time
	Points    int
	Rating    float64
	Stars     evaluation.Stars
}

// SnapshotOf copies the cached fields from a weekly evaluation.
func SnapshotOf(w *evaluation.WeeklyEvaluation) Snapshot {
	return Snapshot{
		WeekStart: w.WeekStart,
		Points:    w.TotalPoints,
		Rating:    w.Rating,
		Stars:     w.Stars,
	}
}

// IsZero reports whether the snapshot was never written.
func (s Snapshot) IsZero() bool {
	return s.WeekStart.IsZero()
}

// IsCurrent reports whether the snapshot belongs to the week containing now.
func (s Snapshot) IsCurrent(now time.Time) bool {
	return !s.IsZero() && evaluation.IsCurrentWeek(s.WeekStart, now)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is a member of a halaqa.
type Student struct {
	ID        string
	FullName  string
	HalaqaID  string
	Status    Status
	Snapshot  Snapshot
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStudent validates and builds an active student.
func NewStudent(id, fullName, halaqaID string, now time.Time) (*Student, error) {
	sid, err := shared.ParseStudentID(id)
	if err != nil {
		return nil, err
	}
	hid, err := shared.ParseHalaqaID(halaqaID)
	if err != nil {
		return nil, err
	}

	fullName = strings.TrimSpace(fullName)
	if fullName == "" || len(fullName) > 200 {
		return nil, shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "full name must be 1-200 chars")
	}

	return &Student{
		ID:        sid,
		FullName:  fullName,
		HalaqaID:  hid,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
