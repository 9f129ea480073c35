// Package booking implements the booking lifecycle: availability queries,
// creation under the no-overlap guarantee, and the status transitions owners
// and customers may perform.
package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nazmul-hoque/bookline/internal/access"
	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/availability"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/outbox"
	"github.com/nazmul-hoque/bookline/internal/session"
	"github.com/nazmul-hoque/bookline/internal/storage"
	"github.com/nazmul-hoque/bookline/libs/db"
)

const defaultTxTimeout = 5 * time.Second

// BookingStore is the slice of the booking repository the manager drives.
type BookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockStaff(ctx context.Context, tx pgx.Tx, businessID, staffID string) error
	HasOccupyingOverlap(ctx context.Context, tx pgx.Tx, staffID string, start, end time.Time) (bool, error)
	Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error)
	GetByID(ctx context.Context, bookingID string) (model.Booking, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (model.Booking, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, bookingID string, status model.BookingStatus, noShow bool) error
	ListOccupying(ctx context.Context, staffID string, from, to time.Time) ([]model.Booking, error)
	ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Booking, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]model.Booking, error)
}

type BusinessStore interface {
	GetByID(ctx context.Context, businessID string) (model.Business, error)
	GetStaff(ctx context.Context, businessID, staffID string) (model.Staff, error)
	GetService(ctx context.Context, businessID, serviceID string) (model.Service, error)
	ListWorkingHours(ctx context.Context, businessID, staffID string) ([]model.WorkingHours, error)
	ListClosedDates(ctx context.Context, businessID, staffID string, from, to time.Time) ([]model.ClosedDate, error)
}

type OwnerStore interface {
	GetByID(ctx context.Context, ownerID string) (model.BusinessOwner, error)
}

type OutboxStore interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Manager struct {
	bookings   BookingStore
	businesses BusinessStore
	owners     OwnerStore
	outbox     OutboxStore
	logger     *slog.Logger
	now        func() time.Time
	txTimeout  time.Duration
}

func NewManager(
	bookings BookingStore,
	businesses BusinessStore,
	owners OwnerStore,
	ob OutboxStore,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		bookings:   bookings,
		businesses: businesses,
		owners:     owners,
		outbox:     ob,
		logger:     logger,
		now:        time.Now,
		txTimeout:  defaultTxTimeout,
	}
}

// AvailableSlots computes bookable start instants for one staff member and
// service over [from, to).
func (m *Manager) AvailableSlots(ctx context.Context, businessID, staffID, serviceID string, from, to time.Time) ([]time.Time, error) {
	biz, err := m.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, classify(err, "business")
	}
	staff, err := m.businesses.GetStaff(ctx, businessID, staffID)
	if err != nil {
		return nil, classify(err, "staff")
	}
	svc, err := m.businesses.GetService(ctx, businessID, serviceID)
	if err != nil {
		return nil, classify(err, "service")
	}
	hours, err := m.businesses.ListWorkingHours(ctx, businessID, staffID)
	if err != nil {
		return nil, classify(err, "working hours")
	}
	closed, err := m.businesses.ListClosedDates(ctx, businessID, staffID, from, to)
	if err != nil {
		return nil, classify(err, "closed dates")
	}
	occupying, err := m.bookings.ListOccupying(ctx, staffID, from, to)
	if err != nil {
		return nil, classify(err, "bookings")
	}

	return availability.ComputeSlots(availability.Inputs{
		Business:    biz,
		Staff:       staff,
		Service:     svc,
		Hours:       hours,
		ClosedDates: closed,
		Bookings:    occupying,
		From:        from,
		To:          to,
		Now:         m.now(),
	})
}

type CreateInput struct {
	BusinessID string
	StaffID    string
	ServiceID  string
	CustomerID string
	StartTime  time.Time
}

// Create books the slot starting at in.StartTime. The start must be an
// available slot at the time of the call; the staff row lock plus in-tx
// overlap re-check makes double booking impossible even when two requests
// race for the same slot.
func (m *Manager) Create(ctx context.Context, in CreateInput) (model.Booking, error) {
	if in.BusinessID == "" || in.StaffID == "" || in.ServiceID == "" || in.CustomerID == "" {
		return model.Booking{}, apperr.Validation("business_id, staff_id, service_id and customer_id are required")
	}
	if in.StartTime.IsZero() {
		return model.Booking{}, apperr.Validation("start_time is required")
	}

	biz, err := m.businesses.GetByID(ctx, in.BusinessID)
	if err != nil {
		return model.Booking{}, classify(err, "business")
	}
	owner, err := m.owners.GetByID(ctx, biz.OwnerID)
	if err != nil {
		return model.Booking{}, classify(err, "owner")
	}
	if !owner.SubscriptionActive {
		return model.Booking{}, apperr.Forbidden("business is not accepting bookings")
	}
	staff, err := m.businesses.GetStaff(ctx, in.BusinessID, in.StaffID)
	if err != nil {
		return model.Booking{}, classify(err, "staff")
	}
	svc, err := m.businesses.GetService(ctx, in.BusinessID, in.ServiceID)
	if err != nil {
		return model.Booking{}, classify(err, "service")
	}

	start := in.StartTime.UTC()
	end := start.Add(time.Duration(svc.DurationMins) * time.Minute)

	lead := time.Duration(biz.MinLeadTimeMinutes) * time.Minute
	if lead < 0 {
		lead = 0
	}
	if start.Before(m.now().Add(lead)) {
		return model.Booking{}, apperr.Validation("start_time is in the past or inside the minimum lead time")
	}

	// Validate the requested start against the same rules the availability
	// endpoint advertises: working window, lead time, closed dates, and
	// currently occupying bookings.
	ok, err := m.slotIsOpen(ctx, biz, staff, svc, start, end)
	if err != nil {
		return model.Booking{}, err
	}
	if !ok {
		return model.Booking{}, apperr.Conflict("requested slot is not available")
	}

	txCtx, cancel := context.WithTimeout(ctx, m.txTimeout)
	defer cancel()

	tx, err := m.bookings.Begin(txCtx)
	if err != nil {
		return model.Booking{}, classify(err, "begin")
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := m.bookings.LockStaff(txCtx, tx, in.BusinessID, in.StaffID); err != nil {
		return model.Booking{}, classify(err, "staff")
	}
	overlap, err := m.bookings.HasOccupyingOverlap(txCtx, tx, in.StaffID, start, end)
	if err != nil {
		return model.Booking{}, classify(err, "overlap check")
	}
	if overlap {
		return model.Booking{}, apperr.Conflict("requested slot is not available")
	}

	b := model.Booking{
		BusinessID: in.BusinessID,
		StaffID:    in.StaffID,
		ServiceID:  in.ServiceID,
		CustomerID: in.CustomerID,
		StartTime:  start,
		EndTime:    end,
		Status:     InitialStatus(biz),
	}
	b.ID, err = m.bookings.Create(txCtx, tx, &b)
	if err != nil {
		return model.Booking{}, classify(err, "insert booking")
	}
	if err := m.emit(txCtx, tx, outbox.EventBookingCreated, b); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(txCtx); err != nil {
		return model.Booking{}, classify(err, "commit")
	}

	m.logger.Info("booking created",
		"booking_id", b.ID,
		"business_id", b.BusinessID,
		"staff_id", b.StaffID,
		"status", string(b.Status),
	)
	return b, nil
}

// slotIsOpen recomputes availability for the exact interval [start, end).
// The requested start is open iff it is the first computed slot.
func (m *Manager) slotIsOpen(ctx context.Context, biz model.Business, staff model.Staff, svc model.Service, start, end time.Time) (bool, error) {
	hours, err := m.businesses.ListWorkingHours(ctx, biz.ID, staff.ID)
	if err != nil {
		return false, classify(err, "working hours")
	}
	closed, err := m.businesses.ListClosedDates(ctx, biz.ID, staff.ID, start, end)
	if err != nil {
		return false, classify(err, "closed dates")
	}
	occupying, err := m.bookings.ListOccupying(ctx, staff.ID, start, end)
	if err != nil {
		return false, classify(err, "bookings")
	}

	slots, err := availability.ComputeSlots(availability.Inputs{
		Business:    biz,
		Staff:       staff,
		Service:     svc,
		Hours:       hours,
		ClosedDates: closed,
		Bookings:    occupying,
		From:        start,
		To:          end,
		Now:         m.now(),
	})
	if err != nil {
		return false, err
	}
	return len(slots) > 0 && slots[0].Equal(start), nil
}

func (m *Manager) Get(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error) {
	b, biz, err := m.load(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if err := access.RequireBookingAccess(claims, b, biz); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Confirm moves a pending booking to confirmed. Owner only.
func (m *Manager) Confirm(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error) {
	return m.transition(ctx, claims, bookingID, transitionRule{
		to:        model.StatusConfirmed,
		event:     outbox.EventBookingConfirmed,
		ownerOnly: true,
	})
}

// Cancel moves a pending or confirmed booking to cancelled. The business
// owner or the booking's customer may cancel.
func (m *Manager) Cancel(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error) {
	return m.transition(ctx, claims, bookingID, transitionRule{
		to:    model.StatusCancelled,
		event: outbox.EventBookingCancelled,
	})
}

// MarkNoShow records that the customer did not attend a confirmed booking.
// Owner only, and only after the booking's end time has passed.
func (m *Manager) MarkNoShow(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error) {
	return m.transition(ctx, claims, bookingID, transitionRule{
		to:        model.StatusCompleted,
		event:     outbox.EventBookingNoShow,
		ownerOnly: true,
		noShow:    true,
		afterEnd:  true,
	})
}

// Complete marks a confirmed booking as attended after it ends. Owner only.
func (m *Manager) Complete(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error) {
	return m.transition(ctx, claims, bookingID, transitionRule{
		to:        model.StatusCompleted,
		ownerOnly: true,
		afterEnd:  true,
	})
}

type transitionRule struct {
	to        model.BookingStatus
	event     string
	ownerOnly bool
	noShow    bool
	afterEnd  bool
}

func (m *Manager) transition(ctx context.Context, claims *session.Claims, bookingID string, rule transitionRule) (model.Booking, error) {
	b, biz, err := m.load(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if rule.ownerOnly {
		err = access.RequireBusinessOwner(claims, biz)
	} else {
		err = access.RequireBookingAccess(claims, b, biz)
	}
	if err != nil {
		return model.Booking{}, err
	}

	txCtx, cancel := context.WithTimeout(ctx, m.txTimeout)
	defer cancel()

	tx, err := m.bookings.Begin(txCtx)
	if err != nil {
		return model.Booking{}, classify(err, "begin")
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Re-read under lock: the status may have moved since the access check.
	b, err = m.bookings.GetForUpdate(txCtx, tx, bookingID)
	if err != nil {
		return model.Booking{}, classify(err, "booking")
	}
	if !CanTransition(b.Status, rule.to) {
		return model.Booking{}, apperr.Newf(apperr.KindConflict, "booking is %s", b.Status)
	}
	if rule.noShow && b.Status != model.StatusConfirmed {
		return model.Booking{}, apperr.Conflict("only confirmed bookings can be marked no-show")
	}
	if rule.afterEnd && m.now().Before(b.EndTime) {
		return model.Booking{}, apperr.Conflict("booking has not ended yet")
	}

	if err := m.bookings.UpdateStatus(txCtx, tx, bookingID, rule.to, rule.noShow); err != nil {
		return model.Booking{}, classify(err, "update status")
	}
	b.Status = rule.to
	b.NoShow = rule.noShow

	if rule.event != "" {
		if err := m.emit(txCtx, tx, rule.event, b); err != nil {
			return model.Booking{}, err
		}
	}
	if err := tx.Commit(txCtx); err != nil {
		return model.Booking{}, classify(err, "commit")
	}

	m.logger.Info("booking transitioned",
		"booking_id", b.ID,
		"status", string(b.Status),
		"no_show", b.NoShow,
	)
	return b, nil
}

func (m *Manager) ListForBusiness(ctx context.Context, claims *session.Claims, businessID string, limit int) ([]model.Booking, error) {
	biz, err := m.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, classify(err, "business")
	}
	if err := access.RequireBusinessOwner(claims, biz); err != nil {
		return nil, err
	}
	out, err := m.bookings.ListByBusiness(ctx, businessID, limit)
	if err != nil {
		return nil, classify(err, "bookings")
	}
	return out, nil
}

func (m *Manager) ListForCustomer(ctx context.Context, claims *session.Claims, customerID string, limit int) ([]model.Booking, error) {
	if err := access.RequireCustomer(claims, customerID); err != nil {
		return nil, err
	}
	out, err := m.bookings.ListByCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, classify(err, "bookings")
	}
	return out, nil
}

func (m *Manager) load(ctx context.Context, bookingID string) (model.Booking, model.Business, error) {
	b, err := m.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return model.Booking{}, model.Business{}, classify(err, "booking")
	}
	biz, err := m.businesses.GetByID(ctx, b.BusinessID)
	if err != nil {
		return model.Booking{}, model.Business{}, classify(err, "business")
	}
	return b, biz, nil
}

type bookingEvent struct {
	BookingID  string    `json:"booking_id"`
	BusinessID string    `json:"business_id"`
	StaffID    string    `json:"staff_id"`
	ServiceID  string    `json:"service_id"`
	CustomerID string    `json:"customer_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Status     string    `json:"status"`
	NoShow     bool      `json:"no_show"`
}

func (m *Manager) emit(ctx context.Context, tx pgx.Tx, eventType string, b model.Booking) error {
	payload, err := json.Marshal(bookingEvent{
		BookingID:  b.ID,
		BusinessID: b.BusinessID,
		StaffID:    b.StaffID,
		ServiceID:  b.ServiceID,
		CustomerID: b.CustomerID,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		Status:     string(b.Status),
		NoShow:     b.NoShow,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, "marshal event", err)
	}
	if err := m.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return classify(err, "outbox")
	}
	return nil
}

// classify maps storage errors onto the error taxonomy handlers translate
// to HTTP statuses.
func classify(err error, what string) error {
	switch {
	case storage.IsNotFound(err):
		return apperr.NotFound(what + " not found")
	case storage.IsConflict(err):
		return apperr.Conflict("requested slot is not available")
	case db.IsTransient(err):
		return apperr.Transient(what, err)
	default:
		return apperr.Wrap(apperr.KindUnknown, what, err)
	}
}
