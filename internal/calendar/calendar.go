// Package calendar computes local-day and week boundaries.
//
// All ranges are half-open: a day is [midnight, next midnight).
package calendar

import "time"

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextDay returns midnight of the day after the day containing t.
// Uses calendar arithmetic so DST transitions do not shift the boundary.
func NextDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
}

// DayBounds returns [start, end) of the day containing t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	return StartOfDay(t, loc), NextDay(t, loc)
}

// StartOfWeek returns Monday midnight of the week containing t.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return time.Date(day.Year(), day.Month(), day.Day()-offset, 0, 0, 0, 0, loc)
}

// WeekBounds returns [Monday, next Monday) of the week containing t.
func WeekBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := StartOfWeek(t, loc)
	return start, time.Date(start.Year(), start.Month(), start.Day()+7, 0, 0, 0, 0, loc)
}

// Days lists the midnights of every day from the day of from through the
// day of to, inclusive. Empty when from is after to.
func Days(from, to time.Time, loc *time.Location) []time.Time {
	start := StartOfDay(from, loc)
	last := StartOfDay(to, loc)

	days := []time.Time{}
	for d := start; !d.After(last); d = NextDay(d, loc) {
		days = append(days, d)
	}
	return days
}

// DayKey formats t as YYYY-MM-DD in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
