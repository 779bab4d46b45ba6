// Package window implements the notification time-window policy and the
// local-day arithmetic shared by every daily counter: the allowed delivery
// window is [07:00, 21:00) local time, and all day-difference math is done at
// local-midnight granularity so that a batch expiring "today" already counts
// as expired.
package window

import (
	"time"
)

// Notification window bounds, in hours of the local day. The window is
// half-open: deliveries are allowed when StartHour <= hour < EndHour.
const (
	StartHour = 7
	EndHour   = 21
)

// DayKeyLayout is the stable local-date format used as the universal
// daily-bucket key throughout every counter.
const DayKeyLayout = "2006-01-02"

// Within reports whether the given hour of day falls inside the allowed
// notification window.
func Within(hour int) bool {
	return hour >= StartHour && hour < EndHour
}

// WithinAt reports whether t falls inside the notification window in loc.
func WithinAt(t time.Time, loc *time.Location) bool {
	return Within(t.In(loc).Hour())
}

// DayKey formats t as the daily-bucket key in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayKeyLayout)
}

// Midnight strips the time-of-day from t in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween returns the number of whole local days from a to b
// (b midnight minus a midnight). Negative when b precedes a.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	am := Midnight(a, loc)
	bm := Midnight(b, loc)
	return int(bm.Sub(am) / (24 * time.Hour))
}

// ParseDay parses a "2006-01-02" date string at local midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DayKeyLayout, s, loc)
}

// NextMorning returns the next 07:00 in loc: today's if now precedes it,
// otherwise tomorrow's. This is the daily kick that restarts the check cycle.
func NextMorning(now time.Time, loc *time.Location) time.Time {
	lt := now.In(loc)
	morning := time.Date(lt.Year(), lt.Month(), lt.Day(), StartHour, 0, 0, 0, loc)
	if !now.Before(morning) {
		morning = morning.AddDate(0, 0, 1)
	}
	return morning
}
