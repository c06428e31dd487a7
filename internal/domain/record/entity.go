// Package record holds the source events that weekly evaluations are computed from:
// attendance marks, presentations and point deductions.
// The evaluation engine only ever reads them.
package record

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceStatus is the outcome of one attendance mark.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusAbsent  AttendanceStatus = "ABSENT"
)

// IsValid reports whether s is a known status.
func (s AttendanceStatus) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent:
		return true
	default:
		return false
	}
}

// Period is the session of the day the mark was taken in.
type Period string

const (
	PeriodMorning Period = "MORNING"
	PeriodEvening Period = "EVENING"
)

// AttendanceMark records whether a student attended one session.
type AttendanceMark struct {
	ID        string
	StudentID string
	Date      time.Time
	Status    AttendanceStatus
	Period    Period
}

// IsPresent reports whether the mark counts towards attendance points.
func (a *AttendanceMark) IsPresent() bool {
	return a.Status == StatusPresent
}

// CountPresent returns how many marks are PRESENT.
func CountPresent(marks []*AttendanceMark) int {
	n := 0
	for _, m := range marks {
		if m.IsPresent() {
			n++
		}
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESENTATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Presentation is a memorisation recital performed by a student.
// Hizb, Quarter and Grade are optional; every presentation counts the same.
type Presentation struct {
	ID        string
	StudentID string
	Date      time.Time
	Hizb      *int
	Quarter   *int
	Grade     *string
}

// ══════════════════════════════════════════════════════════════════════════════
// DEDUCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Deduction adjusts a student's points. Points is signed and normally negative.
type Deduction struct {
	ID        string
	StudentID string
	Date      time.Time
	Points    int
	Reason    string
}

// SumPoints returns the signed sum of deduction points.
func SumPoints(deductions []*Deduction) int {
	sum := 0
	for _, d := range deductions {
		sum += d.Points
	}
	return sum
}
