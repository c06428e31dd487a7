package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
)

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// WeekStartSchedule fires once per Saturday-aligned week, Offset after the
// week boundary in Location.
type WeekStartSchedule struct {
	Offset   time.Duration
	Location *time.Location
}

// NewWeekStartSchedule creates a WeekStartSchedule.
func NewWeekStartSchedule(offset time.Duration, loc *time.Location) *WeekStartSchedule {
	if loc == nil {
		loc = time.UTC
	}
	return &WeekStartSchedule{Offset: offset, Location: loc}
}

// Next returns the first week start plus Offset strictly after t.
func (s *WeekStartSchedule) Next(t time.Time) time.Time {
	local := t.In(s.Location)
	next := evaluation.WeekStart(local).Add(s.Offset)
	for !next.After(local) {
		ws := evaluation.WeekStart(next.AddDate(0, 0, evaluation.DaysPerWeek))
		next = ws.Add(s.Offset)
	}
	return next
}

// String returns the string representation of the schedule.
func (s *WeekStartSchedule) String() string {
	return fmt.Sprintf("@weekstart+%s", s.Offset)
}

// ParseSchedule understands "@weekstart", "@weekstart+<duration>",
// "@every <duration>" and 5-field cron expressions.
func ParseSchedule(expr string, loc *time.Location) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "@weekstart":
		return NewWeekStartSchedule(0, loc), nil
	case strings.HasPrefix(expr, "@weekstart+"):
		d, err := time.ParseDuration(strings.TrimPrefix(expr, "@weekstart+"))
		if err != nil || d < 0 || d >= 7*24*time.Hour {
			return nil, fmt.Errorf("invalid schedule %q: offset must be within one week", expr)
		}
		return NewWeekStartSchedule(d, loc), nil
	case strings.HasPrefix(expr, "@every "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(expr, "@every ")))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid schedule %q: bad interval", expr)
		}
		return NewIntervalSchedule(d), nil
	default:
		return ParseCron(expr, loc)
	}
}
