// Package availability derives bookable slot starts from a staff member's
// weekly template, a service duration, closed dates, and occupying bookings.
// It is a pure function of its inputs so callers can recompute on demand.
package availability

import (
	"time"

	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/timeutil"
)

const (
	DefaultStepMinutes     = 15
	DefaultLeadTimeMinutes = 60
)

// Inputs carries everything ComputeSlots needs. Bookings must be the
// occupying ones (pending/confirmed) intersecting [From, To); ClosedDates
// those intersecting the same range for the business or the staff member.
type Inputs struct {
	Business    model.Business
	Staff       model.Staff
	Service     model.Service
	Hours       []model.WorkingHours
	ClosedDates []model.ClosedDate
	Bookings    []model.Booking
	From        time.Time
	To          time.Time
	Now         time.Time
}

// ComputeSlots returns candidate start instants ordered ascending. An
// inactive business, staff, or service yields an empty result, not an error.
func ComputeSlots(in Inputs) ([]time.Time, error) {
	if !in.Business.IsActive || !in.Staff.IsActive || !in.Service.IsActive {
		return nil, nil
	}
	if in.Service.DurationMins <= 0 || !in.To.After(in.From) {
		return nil, nil
	}

	loc, err := time.LoadLocation(in.Business.Timezone)
	if err != nil {
		loc = time.UTC
	}

	step := time.Duration(in.Business.SlotStepMinutes) * time.Minute
	if step <= 0 {
		step = DefaultStepMinutes * time.Minute
	}
	lead := time.Duration(in.Business.MinLeadTimeMinutes) * time.Minute
	if lead < 0 {
		lead = 0
	}
	duration := time.Duration(in.Service.DurationMins) * time.Minute
	earliest := in.Now.Add(lead)

	byWeekday := make(map[time.Weekday]model.WorkingHours, len(in.Hours))
	for _, wh := range in.Hours {
		byWeekday[wh.Weekday] = wh
	}

	busy := make([]timeutil.Interval, 0, len(in.Bookings)+len(in.ClosedDates))
	for _, b := range in.Bookings {
		if b.Status.Occupying() {
			busy = append(busy, timeutil.Interval{Start: b.StartTime, End: b.EndTime})
		}
	}
	for _, cd := range in.ClosedDates {
		busy = append(busy, timeutil.Interval{Start: cd.StartTime, End: cd.EndTime})
	}

	var slots []time.Time
	for _, day := range timeutil.DaysBetween(in.From, in.To, loc) {
		wh, ok := byWeekday[day.Weekday()]
		if !ok || !wh.IsWorking || wh.EndMinute <= wh.StartMinute {
			continue
		}
		window := timeutil.DayWindow(day, wh.StartMinute, wh.EndMinute, loc)
		notBefore := earliest
		if in.From.After(notBefore) {
			notBefore = in.From
		}
		slots = append(slots, slotsInWindow(window, duration, step, busy, notBefore, in.To)...)
	}
	return slots, nil
}

// slotsInWindow returns slot starts inside window where a booking of length
// duration fits entirely and does not overlap any busy interval. The grid is
// anchored at the window start so every caller sees the same candidate
// instants; notBefore and notAfter only filter it, never re-anchor it.
func slotsInWindow(window timeutil.Interval, duration, step time.Duration, busy []timeutil.Interval, notBefore, notAfter time.Time) []time.Time {
	if !window.Valid() || window.Start.Add(duration).After(window.End) {
		return nil
	}

	var slots []time.Time
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		if !t.Before(notAfter) {
			break
		}
		if t.Before(notBefore) {
			continue
		}
		candidate := timeutil.Interval{Start: t, End: t.Add(duration)}
		if candidate.OverlapsAny(busy) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}
