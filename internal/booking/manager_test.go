package booking

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/outbox"
	"github.com/nazmul-hoque/bookline/internal/session"
)

// fakeBookingStore mimics the repository in memory. LockStaff blocks on a
// per-store mutex held until Commit or Rollback, the same serialization the
// staff row lock provides.
type fakeBookingStore struct {
	mu     sync.Mutex
	rows   map[string]model.Booking
	nextID int

	staffLock sync.Mutex
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{rows: map[string]model.Booking{}}
}

type fakeTx struct {
	pgx.Tx
	store     *fakeBookingStore
	holdsLock bool
	done      bool
}

func (t *fakeTx) finish() {
	if t.done {
		return
	}
	t.done = true
	if t.holdsLock {
		t.store.staffLock.Unlock()
	}
}

func (t *fakeTx) Commit(context.Context) error   { t.finish(); return nil }
func (t *fakeTx) Rollback(context.Context) error { t.finish(); return nil }

func (s *fakeBookingStore) Begin(context.Context) (pgx.Tx, error) {
	return &fakeTx{store: s}, nil
}

func (s *fakeBookingStore) LockStaff(_ context.Context, tx pgx.Tx, _, _ string) error {
	s.staffLock.Lock()
	tx.(*fakeTx).holdsLock = true
	return nil
}

func (s *fakeBookingStore) HasOccupyingOverlap(_ context.Context, _ pgx.Tx, staffID string, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.rows {
		if b.StaffID == staffID && b.Status.Occupying() && b.StartTime.Before(end) && start.Before(b.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeBookingStore) Create(_ context.Context, _ pgx.Tx, b *model.Booking) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := "bk-" + strconv.Itoa(s.nextID)
	row := *b
	row.ID = id
	s.rows[id] = row
	return id, nil
}

func (s *fakeBookingStore) GetByID(_ context.Context, bookingID string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[bookingID]
	if !ok {
		return model.Booking{}, pgx.ErrNoRows
	}
	return b, nil
}

func (s *fakeBookingStore) GetForUpdate(ctx context.Context, _ pgx.Tx, bookingID string) (model.Booking, error) {
	return s.GetByID(ctx, bookingID)
}

func (s *fakeBookingStore) UpdateStatus(_ context.Context, _ pgx.Tx, bookingID string, status model.BookingStatus, noShow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[bookingID]
	if !ok {
		return pgx.ErrNoRows
	}
	b.Status = status
	b.NoShow = noShow
	s.rows[bookingID] = b
	return nil
}

func (s *fakeBookingStore) ListOccupying(_ context.Context, staffID string, from, to time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.rows {
		if b.StaffID == staffID && b.Status.Occupying() && b.StartTime.Before(to) && from.Before(b.EndTime) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBookingStore) ListByBusiness(_ context.Context, businessID string, _ int) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.rows {
		if b.BusinessID == businessID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBookingStore) ListByCustomer(_ context.Context, customerID string, _ int) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.rows {
		if b.CustomerID == customerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBookingStore) occupyingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.rows {
		if b.Status.Occupying() {
			n++
		}
	}
	return n
}

type fakeBusinessStore struct {
	biz    model.Business
	staff  model.Staff
	svc    model.Service
	hours  []model.WorkingHours
	closed []model.ClosedDate
}

func (s *fakeBusinessStore) GetByID(_ context.Context, businessID string) (model.Business, error) {
	if businessID != s.biz.ID {
		return model.Business{}, pgx.ErrNoRows
	}
	return s.biz, nil
}

func (s *fakeBusinessStore) GetStaff(_ context.Context, _, staffID string) (model.Staff, error) {
	if staffID != s.staff.ID {
		return model.Staff{}, pgx.ErrNoRows
	}
	return s.staff, nil
}

func (s *fakeBusinessStore) GetService(_ context.Context, _, serviceID string) (model.Service, error) {
	if serviceID != s.svc.ID {
		return model.Service{}, pgx.ErrNoRows
	}
	return s.svc, nil
}

func (s *fakeBusinessStore) ListWorkingHours(context.Context, string, string) ([]model.WorkingHours, error) {
	return s.hours, nil
}

func (s *fakeBusinessStore) ListClosedDates(context.Context, string, string, time.Time, time.Time) ([]model.ClosedDate, error) {
	return s.closed, nil
}

type fakeOwnerStore struct {
	owner model.BusinessOwner
}

func (s *fakeOwnerStore) GetByID(_ context.Context, ownerID string) (model.BusinessOwner, error) {
	if ownerID != s.owner.ID {
		return model.BusinessOwner{}, pgx.ErrNoRows
	}
	return s.owner, nil
}

type fakeOutboxStore struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (s *fakeOutboxStore) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *fakeOutboxStore) count(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// Monday 2026-03-02, staff working 09:00-12:00 UTC at 30m steps.
func newTestManager() (*Manager, *fakeBookingStore, *fakeOutboxStore) {
	bookings := newFakeBookingStore()
	ob := &fakeOutboxStore{}
	businesses := &fakeBusinessStore{
		biz: model.Business{
			ID: "biz-1", OwnerID: "owner-1", Timezone: "UTC",
			SlotStepMinutes: 30, AutoConfirm: true, IsActive: true,
		},
		staff: model.Staff{ID: "staff-1", BusinessID: "biz-1", IsActive: true},
		svc:   model.Service{ID: "svc-1", BusinessID: "biz-1", DurationMins: 30, IsActive: true},
		hours: []model.WorkingHours{
			{StaffID: "staff-1", Weekday: time.Monday, IsWorking: true, StartMinute: 9 * 60, EndMinute: 12 * 60},
		},
	}
	owners := &fakeOwnerStore{owner: model.BusinessOwner{ID: "owner-1", SubscriptionActive: true}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(bookings, businesses, owners, ob, logger)
	m.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m, bookings, ob
}

func mondaySlot(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestCreate_ConcurrentSameSlotHasOneWinner(t *testing.T) {
	m, bookings, ob := newTestManager()
	in := CreateInput{
		BusinessID: "biz-1", StaffID: "staff-1", ServiceID: "svc-1",
		StartTime: mondaySlot(9, 0),
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		customer := "cust-" + strconv.Itoa(i)
		go func() {
			defer wg.Done()
			c := in
			c.CustomerID = customer
			_, err := m.Create(context.Background(), c)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case apperr.IsKind(err, apperr.KindConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || conflicted != 1 {
		t.Fatalf("want exactly one winner and one conflict, got %d winners, %d conflicts", won, conflicted)
	}
	if n := bookings.occupyingCount(); n != 1 {
		t.Fatalf("store must hold exactly one occupying booking, got %d", n)
	}
	if n := ob.count(outbox.EventBookingCreated); n != 1 {
		t.Fatalf("exactly one created event must be emitted, got %d", n)
	}
}

func TestCreate_OffGridStartIsRejected(t *testing.T) {
	m, _, _ := newTestManager()
	_, err := m.Create(context.Background(), CreateInput{
		BusinessID: "biz-1", StaffID: "staff-1", ServiceID: "svc-1",
		CustomerID: "cust-1", StartTime: mondaySlot(9, 10),
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("want Conflict for a start off the slot grid, got %v", err)
	}
}

func TestCreate_InsideLeadTimeIsValidation(t *testing.T) {
	m, _, _ := newTestManager()
	m.now = func() time.Time { return mondaySlot(9, 0) }
	m.businesses.(*fakeBusinessStore).biz.MinLeadTimeMinutes = 60

	for _, start := range []time.Time{mondaySlot(9, 30), mondaySlot(8, 0)} {
		_, err := m.Create(context.Background(), CreateInput{
			BusinessID: "biz-1", StaffID: "staff-1", ServiceID: "svc-1",
			CustomerID: "cust-1", StartTime: start,
		})
		if !apperr.IsKind(err, apperr.KindValidation) {
			t.Fatalf("start %s: want Validation inside the lead window, got %v", start, err)
		}
	}
}

func TestCancelFreesTheSlot(t *testing.T) {
	m, _, _ := newTestManager()
	in := CreateInput{
		BusinessID: "biz-1", StaffID: "staff-1", ServiceID: "svc-1",
		CustomerID: "cust-1", StartTime: mondaySlot(10, 0),
	}
	b, err := m.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := m.Create(context.Background(), in); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("want Conflict while the slot is held, got %v", err)
	}

	claims := &session.Claims{Sub: "cust-1", Kind: session.KindCustomer}
	if _, err := m.Cancel(context.Background(), claims, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slots, err := m.AvailableSlots(context.Background(), "biz-1", "staff-1", "svc-1",
		mondaySlot(9, 0), mondaySlot(12, 0))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	found := false
	for _, s := range slots {
		if s.Equal(mondaySlot(10, 0)) {
			found = true
		}
	}
	if !found {
		t.Fatal("cancelled slot should reappear in availability")
	}
}
