package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronSchedule is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week (0 = Sunday).
// Supports *, */n, n, n-m, n-m/s and comma lists.
type CronSchedule struct {
	raw      string
	minutes  uint64
	hours    uint64
	days     uint64
	months   uint64
	weekdays uint64
	loc      *time.Location
}

// ParseCron parses expr. Times are matched in loc (UTC when nil).
func ParseCron(expr string, loc *time.Location) (*CronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}
	if loc == nil {
		loc = time.UTC
	}

	cs := &CronSchedule{raw: expr, loc: loc}
	bounds := []struct {
		name     string
		min, max int
		dst      *uint64
	}{
		{"minute", 0, 59, &cs.minutes},
		{"hour", 0, 23, &cs.hours},
		{"day", 1, 31, &cs.days},
		{"month", 1, 12, &cs.months},
		{"weekday", 0, 6, &cs.weekdays},
	}
	for i, b := range bounds {
		mask, err := parseField(fields[i], b.min, b.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", b.name, err)
		}
		*b.dst = mask
	}
	return cs, nil
}

// MustParseCron parses a cron expression or panics.
func MustParseCron(expr string, loc *time.Location) *CronSchedule {
	cs, err := ParseCron(expr, loc)
	if err != nil {
		panic(err)
	}
	return cs
}

func parseField(field string, min, max int) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(field, ",") {
		lo, hi, step := min, max, 1

		rangePart := part
		if i := strings.IndexByte(part, '/'); i >= 0 {
			s, err := strconv.Atoi(part[i+1:])
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("invalid step in %q", part)
			}
			step = s
			rangePart = part[:i]
		}

		switch {
		case rangePart == "*":
		case strings.Contains(rangePart, "-"):
			a, b, _ := strings.Cut(rangePart, "-")
			var err1, err2 error
			lo, err1 = strconv.Atoi(a)
			hi, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return 0, fmt.Errorf("invalid range %q", rangePart)
			}
		default:
			v, err := strconv.Atoi(rangePart)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", rangePart)
			}
			lo = v
			if step == 1 {
				hi = v
			}
		}

		if lo < min || hi > max || lo > hi {
			return 0, fmt.Errorf("%q out of range [%d-%d]", part, min, max)
		}
		for v := lo; v <= hi; v += step {
			mask |= 1 << uint(v)
		}
	}
	return mask, nil
}

func has(mask uint64, v int) bool {
	return mask&(1<<uint(v)) != 0
}

// Next returns the first matching minute strictly after t, or the zero time
// when nothing matches within a year.
func (cs *CronSchedule) Next(t time.Time) time.Time {
	next := t.In(cs.loc).Truncate(time.Minute).Add(time.Minute)
	limit := next.AddDate(1, 0, 0)

	for next.Before(limit) {
		if !has(cs.months, int(next.Month())) || !has(cs.days, next.Day()) || !has(cs.weekdays, int(next.Weekday())) {
			y, m, d := next.Date()
			next = time.Date(y, m, d+1, 0, 0, 0, 0, cs.loc)
			continue
		}
		if !has(cs.hours, next.Hour()) {
			y, m, d := next.Date()
			next = time.Date(y, m, d, next.Hour()+1, 0, 0, 0, cs.loc)
			continue
		}
		if !has(cs.minutes, next.Minute()) {
			next = next.Add(time.Minute)
			continue
		}
		return next
	}
	return time.Time{}
}

// String returns the original cron expression.
func (cs *CronSchedule) String() string {
	return cs.raw
}
