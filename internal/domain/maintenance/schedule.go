package maintenance

import (
	"strconv"
	"strings"
	"time"

	"github.com/veloxpos/audit-engine/internal/domain/errors"
)

// NextRun computes the next occurrence of a 5-field cron-like schedule
// ("minute hour day-of-month month day-of-week", each field "*" or an
// integer) strictly after now.
//
// This is deliberately a subset of cron: only the minute, hour and
// day-of-week fields constrain the result. Day-of-month and month are
// parsed but ignored beyond validation, matching the schedules this
// engine has always accepted. Generalizing to full cron semantics is out
// of scope.
//
// A malformed expression returns a schedule parse error; callers fall
// back to now + 24h.
func NextRun(expr string, now time.Time) (time.Time, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return time.Time{}, errors.NewScheduleParseError(expr)
	}

	minute, err := parseField(fields[0], 0, 59)
	if err != nil {
		return time.Time{}, errors.NewScheduleParseError(expr)
	}
	hour, err := parseField(fields[1], 0, 23)
	if err != nil {
		return time.Time{}, errors.NewScheduleParseError(expr)
	}
	if _, err := parseField(fields[2], 1, 31); err != nil {
		return time.Time{}, errors.NewScheduleParseError(expr)
	}
	if _, err := parseField(fields[3], 1, 12); err != nil {
		return time.Time{}, errors.NewScheduleParseError(expr)
	}
	weekday, err := parseField(fields[4], 0, 6)
	if err != nil {
		return time.Time{}, errors.NewScheduleParseError(expr)
	}

	h, m := now.Hour(), now.Minute()
	if hour >= 0 {
		h = hour
	}
	if minute >= 0 {
		m = minute
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())

	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	if weekday >= 0 {
		days := (weekday - int(next.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, days)
	}

	return next, nil
}

// parseField returns -1 for a wildcard, the parsed value for an in-range
// integer, and an error otherwise.
func parseField(field string, min, max int) (int, error) {
	if field == "*" {
		return -1, nil
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, strconv.ErrRange
	}
	return v, nil
}
