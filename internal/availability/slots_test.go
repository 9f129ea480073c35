package availability

import (
	"testing"
	"time"

	"github.com/nazmul-hoque/bookline/internal/model"
)

func testInputs(loc *time.Location) Inputs {
	// Monday 2026-03-02.
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	return Inputs{
		Business: model.Business{
			ID:              "biz-1",
			Timezone:        loc.String(),
			SlotStepMinutes: 30,
			IsActive:        true,
		},
		Staff:   model.Staff{ID: "staff-aki", BusinessID: "biz-1", Name: "Aki", IsActive: true},
		Service: model.Service{ID: "svc-1", BusinessID: "biz-1", DurationMins: 30, IsActive: true},
		Hours: []model.WorkingHours{
			{StaffID: "staff-aki", Weekday: time.Monday, IsWorking: true, StartMinute: 9 * 60, EndMinute: 12 * 60},
		},
		From: day,
		To:   day.AddDate(0, 0, 1),
		Now:  day.Add(-24 * time.Hour),
	}
}

func TestComputeSlots_ExcludesBookedInterval(t *testing.T) {
	loc := time.UTC
	in := testInputs(loc)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	in.Bookings = []model.Booking{{
		StaffID:   "staff-aki",
		StartTime: day.Add(9*time.Hour + 30*time.Minute),
		EndTime:   day.Add(10 * time.Hour),
		Status:    model.StatusConfirmed,
	}}

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}

	want := []time.Time{
		day.Add(9 * time.Hour),
		day.Add(10 * time.Hour),
		day.Add(10*time.Hour + 30*time.Minute),
		day.Add(11 * time.Hour),
		day.Add(11*time.Hour + 30*time.Minute),
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(slots), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestComputeSlots_MidWindowQueryKeepsGridAnchor(t *testing.T) {
	loc := time.UTC
	in := testInputs(loc)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	// Querying from 09:10 must not shift the grid to 09:10, 09:40, ...
	in.From = day.Add(9*time.Hour + 10*time.Minute)

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}

	want := []time.Time{
		day.Add(9*time.Hour + 30*time.Minute),
		day.Add(10 * time.Hour),
		day.Add(10*time.Hour + 30*time.Minute),
		day.Add(11 * time.Hour),
		day.Add(11*time.Hour + 30*time.Minute),
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(slots), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestComputeSlots_RangeEndFiltersStartsNotFit(t *testing.T) {
	loc := time.UTC
	in := testInputs(loc)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	// Starts must lie in [from, to); the duration fit is judged against the
	// working window, so 09:30 stays bookable even though it ends at to.
	in.To = day.Add(10 * time.Hour)

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	want := []time.Time{
		day.Add(9 * time.Hour),
		day.Add(9*time.Hour + 30*time.Minute),
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(slots), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestComputeSlots_OrderedAscending(t *testing.T) {
	in := testInputs(time.UTC)
	in.To = in.From.AddDate(0, 0, 8) // two Mondays

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots across two Mondays")
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].After(slots[i-1]) {
			t.Fatalf("slots out of order at %d: %s then %s", i, slots[i-1], slots[i])
		}
	}
}

func TestComputeSlots_CancelledBookingDoesNotBlock(t *testing.T) {
	loc := time.UTC
	in := testInputs(loc)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	in.Bookings = []model.Booking{{
		StaffID:   "staff-aki",
		StartTime: day.Add(9*time.Hour + 30*time.Minute),
		EndTime:   day.Add(10 * time.Hour),
		Status:    model.StatusCancelled,
	}}

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	found := false
	for _, s := range slots {
		if s.Equal(day.Add(9*time.Hour + 30*time.Minute)) {
			found = true
		}
	}
	if !found {
		t.Fatal("09:30 should reappear once the booking is cancelled")
	}
}

func TestComputeSlots_ClosedDateRemovesWholeDay(t *testing.T) {
	loc := time.UTC
	in := testInputs(loc)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	in.ClosedDates = []model.ClosedDate{{
		BusinessID: "biz-1",
		StartTime:  day,
		EndTime:    day.AddDate(0, 0, 1),
	}}

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a fully closed day, got %d", len(slots))
	}
}

func TestComputeSlots_DurationLongerThanWindow(t *testing.T) {
	in := testInputs(time.UTC)
	in.Service.DurationMins = 4 * 60 // window is only 3h

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected empty sequence when the service cannot fit, got %d", len(slots))
	}
}

func TestComputeSlots_LeadTimeSkipsNearSlots(t *testing.T) {
	loc := time.UTC
	in := testInputs(loc)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	in.Business.MinLeadTimeMinutes = 60
	in.Now = day.Add(9 * time.Hour) // 09:00 on the day itself

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected some slots after the lead window")
	}
	if !slots[0].Equal(day.Add(10 * time.Hour)) {
		t.Fatalf("first slot should be 10:00 with a 60m lead from 09:00, got %s", slots[0])
	}
}

func TestComputeSlots_InactiveYieldsEmpty(t *testing.T) {
	in := testInputs(time.UTC)
	in.Staff.IsActive = false

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if slots != nil {
		t.Fatalf("inactive staff must yield an empty sequence, got %v", slots)
	}
}

func TestComputeSlots_DSTDayUsesWallClock(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// Sunday 2026-03-08: spring-forward day.
	day := time.Date(2026, 3, 8, 0, 0, 0, 0, loc)
	in := testInputs(loc)
	in.Business.Timezone = "America/New_York"
	in.Hours = []model.WorkingHours{
		{StaffID: "staff-aki", Weekday: time.Sunday, IsWorking: true, StartMinute: 9 * 60, EndMinute: 12 * 60},
	}
	in.From = day
	in.To = day.AddDate(0, 0, 1)
	in.Now = day.Add(-24 * time.Hour)

	slots, err := ComputeSlots(in)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots in a 3h window at 30m steps, got %d", len(slots))
	}
	first := slots[0].In(loc)
	if first.Hour() != 9 || first.Minute() != 0 {
		t.Fatalf("first slot should be 09:00 wall clock, got %02d:%02d", first.Hour(), first.Minute())
	}
}
