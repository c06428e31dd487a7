// Package evaluation is the scoring core: week buckets, ratings, star tiers and the
// weekly/monthly/yearly evaluation records derived from student activity.
// No external dependencies.
package evaluation

import (
	"time"

	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// WeekStartDay is the first day of a program week.
const WeekStartDay = time.Saturday

// DaysPerWeek is the length of a week bucket.
const DaysPerWeek = 7

// WeekStart returns midnight of the Saturday that opens the week containing t,
// in t's own location. WeekStart(WeekStart(t)) == WeekStart(t).
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 1) % DaysPerWeek
	return timeutil.StartOfDay(t.AddDate(0, 0, -offset))
}

// WeekOf returns the half-open week window [WeekStart(t), WeekStart(t)+7d).
func WeekOf(t time.Time) timeutil.Range {
	return timeutil.DaysFrom(WeekStart(t), DaysPerWeek)
}

// IsCurrentWeek reports whether the bucket starting at weekStart is the bucket of now.
// This is the only condition under which a student's cached snapshot may be written.
func IsCurrentWeek(weekStart, now time.Time) bool {
	return WeekStart(weekStart.In(now.Location())).Equal(WeekStart(now))
}
