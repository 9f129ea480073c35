// Package timeutil holds timezone-aware interval arithmetic with no
// business logic.
package timeutil

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Valid() bool {
	return !iv.Start.IsZero() && iv.End.After(iv.Start)
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// OverlapsAny reports whether iv intersects any interval in set.
func (iv Interval) OverlapsAny(set []Interval) bool {
	for _, other := range set {
		if iv.Overlaps(other) {
			return true
		}
	}
	return false
}

// DayWindow converts a minute-of-day pair on a calendar day into absolute
// instants in loc. Building via time.Date keeps the result correct across
// DST transitions: 540 minutes is always 09:00 wall clock, whatever the
// day's UTC offset.
func DayWindow(day time.Time, startMinute, endMinute int, loc *time.Location) Interval {
	d := day.In(loc)
	return Interval{
		Start: time.Date(d.Year(), d.Month(), d.Day(), startMinute/60, startMinute%60, 0, 0, loc),
		End:   time.Date(d.Year(), d.Month(), d.Day(), endMinute/60, endMinute%60, 0, 0, loc),
	}
}

// DaysBetween yields each calendar day from the day containing from through
// the day containing to, at midnight in loc.
func DaysBetween(from, to time.Time, loc *time.Location) []time.Time {
	start := Midnight(from, loc)
	end := Midnight(to, loc)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Midnight returns 00:00 wall clock of t's calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
