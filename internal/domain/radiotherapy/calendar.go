package radiotherapy

import (
	"fmt"
	"strings"
	"time"
)

// Calendar days are represented as time.Time at midnight UTC so that date
// arithmetic never crosses a DST boundary.

var dateLayouts = []string{"2006-01-02", "02.01.2006", time.RFC3339}

// Day truncates t to its calendar day, read in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a calendar day by n days.
func AddDays(d time.Time, n int) time.Time {
	return Day(d).AddDate(0, 0, n)
}

// IsWorkingDay is true Monday through Friday. Public holidays are not modelled.
func IsWorkingDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// CountWorkingDays counts Mon-Fri days in [from, to], both ends included.
func CountWorkingDays(from, to time.Time) int {
	from, to = Day(from), Day(to)
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsWorkingDay(d) {
			n++
		}
	}
	return n
}

// ParseDate accepts ISO dates, the dd.mm.yyyy form used on paper records
// and RFC 3339 timestamps.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

// Clock returns the current instant. Handlers and commands derive "today"
// from it in the clinic's time zone.
type Clock func() time.Time

// Today returns the calendar day of the clock's instant in loc.
func (c Clock) Today(loc *time.Location) time.Time {
	now := time.Now
	if c != nil {
		now = c
	}
	if loc == nil {
		loc = time.UTC
	}
	return Day(now().In(loc))
}

func sameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

func dayPtr(t time.Time) *time.Time {
	d := Day(t)
	return &d
}

func equalDayPtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return sameDay(*a, *b)
}
