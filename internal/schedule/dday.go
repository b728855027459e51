package schedule

import (
	"fmt"
	"time"
)

// DateLayout is the anchor date format used in issue bodies and payloads
const DateLayout = "2006-01-02"

// TimeOfDay is the wall clock time every trigger fires at
type TimeOfDay struct {
	Hour   int
	Minute int
}

// DefaultFireTime is 09:00 local time
var DefaultFireTime = TimeOfDay{Hour: 9, Minute: 0}

// ParseTimeOfDay parses "HH:MM" (24h)
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// FireInstant returns the instant offsetDays calendar days from anchor, at the
// given wall clock time in loc. Only the anchor's year, month and day are used;
// time.Date normalizes month, year and leap day overflow.
func FireInstant(anchor time.Time, offsetDays int, at TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := anchor.Date()
	return time.Date(y, m, d+offsetDays, at.Hour, at.Minute, 0, 0, loc)
}

// CronExpression renders a one-shot EventBridge schedule for t.
// EventBridge evaluates cron expressions in UTC.
func CronExpression(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("cron(%d %d %d %d ? %d)", u.Minute(), u.Hour(), u.Day(), int(u.Month()), u.Year())
}
