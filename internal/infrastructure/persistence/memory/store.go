// Package memory implements every repository in process memory.
// Backs the application tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/record"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

type weekKey struct {
	studentID string
	weekStart int64
}

type monthKey struct {
	studentID string
	year      int
	month     time.Month
}

type yearKey struct {
	studentID string
	year      int
}

// Store holds records, evaluations and students.
// Stored values are copied on the way in and out.
type Store struct {
	mu sync.RWMutex

	attendance    []record.AttendanceMark
	presentations []record.Presentation
	deductions    []record.Deduction

	weekly  map[weekKey]evaluation.WeeklyEvaluation
	monthly map[monthKey]evaluation.MonthlyEvaluation
	yearly  map[yearKey]evaluation.YearlyEvaluation

	students map[string]student.Student
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		weekly:   make(map[weekKey]evaluation.WeeklyEvaluation),
		monthly:  make(map[monthKey]evaluation.MonthlyEvaluation),
		yearly:   make(map[yearKey]evaluation.YearlyEvaluation),
		students: make(map[string]student.Student),
	}
}

var (
	_ record.Reader         = (*Store)(nil)
	_ record.Writer         = (*Store)(nil)
	_ evaluation.Repository = (*Store)(nil)
	_ student.Repository    = (*Store)(nil)
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORDS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) AddAttendance(_ context.Context, m *record.AttendanceMark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance = append(s.attendance, *m)
	return nil
}

func (s *Store) AddPresentation(_ context.Context, p *record.Presentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presentations = append(s.presentations, *p)
	return nil
}

func (s *Store) AddDeduction(_ context.Context, d *record.Deduction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deductions = append(s.deductions, *d)
	return nil
}

func (s *Store) ListAttendance(_ context.Context, studentID string, r timeutil.Range) ([]*record.AttendanceMark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*record.AttendanceMark
	for _, m := range s.attendance {
		if m.StudentID == studentID && r.Contains(m.Date) {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

func (s *Store) ListPresentations(_ context.Context, studentID string, r timeutil.Range) ([]*record.Presentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*record.Presentation
	for _, p := range s.presentations {
		if p.StudentID == studentID && r.Contains(p.Date) {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (s *Store) ListDeductions(_ context.Context, studentID string, r timeutil.Range) ([]*record.Deduction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*record.Deduction
	for _, d := range s.deductions {
		if d.StudentID == studentID && r.Contains(d.Date) {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATIONS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) UpsertWeekly(_ context.Context, w *evaluation.WeeklyEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weekly[weekKey{w.StudentID, w.WeekStart.Unix()}] = *w
	return nil
}

func (s *Store) UpsertMonthly(_ context.Context, m *evaluation.MonthlyEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthly[monthKey{m.StudentID, m.Year, m.Month}] = *m
	return nil
}

func (s *Store) UpsertYearly(_ context.Context, y *evaluation.YearlyEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.yearly[yearKey{y.StudentID, y.Year}] = *y
	return nil
}

func (s *Store) ListWeekly(_ context.Context, studentID string, r timeutil.Range) ([]*evaluation.WeeklyEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*evaluation.WeeklyEvaluation
	for k, w := range s.weekly {
		if k.studentID == studentID && r.Contains(w.WeekStart) {
			w := w
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.Before(out[j].WeekStart) })
	return out, nil
}

func (s *Store) GetWeekly(_ context.Context, studentID string, weekStart time.Time) (*evaluation.WeeklyEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.weekly[weekKey{studentID, weekStart.Unix()}]
	if !ok {
		return nil, shared.ErrEvaluationNotFound
	}
	return &w, nil
}

func (s *Store) GetMonthly(_ context.Context, studentID string, year int, month time.Month) (*evaluation.MonthlyEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.monthly[monthKey{studentID, year, month}]
	if !ok {
		return nil, shared.ErrEvaluationNotFound
	}
	return &m, nil
}

func (s *Store) GetYearly(_ context.Context, studentID string, year int) (*evaluation.YearlyEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, ok := s.yearly[yearKey{studentID, year}]
	if !ok {
		return nil, shared.ErrEvaluationNotFound
	}
	return &y, nil
}

// WeeklyCount returns how many weekly rows exist for studentID.
func (s *Store) WeeklyCount(studentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.weekly {
		if k.studentID == studentID {
			n++
		}
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) Create(_ context.Context, st *student.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[st.ID]; ok {
		return shared.NewDomainError("student", "Create", shared.ErrInvalidEntity, "student already exists")
	}
	s.students[st.ID] = *st
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*student.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return &st, nil
}

func (s *Store) UpdateSnapshot(_ context.Context, id string, snap student.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[id]
	if !ok {
		return nil
	}
	st.Snapshot = snap
	s.students[id] = st
	return nil
}

func (s *Store) ListIDs(_ context.Context, opts student.ListOptions) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, st := range s.students {
		if opts.Matches(&st) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
