package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/booking"
	"github.com/nazmul-hoque/bookline/internal/invite"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/session"
)

type fakeBookingService struct {
	createErr error
	created   model.Booking
}

func (f *fakeBookingService) AvailableSlots(context.Context, string, string, string, time.Time, time.Time) ([]time.Time, error) {
	return nil, nil
}

func (f *fakeBookingService) Create(_ context.Context, in booking.CreateInput) (model.Booking, error) {
	if f.createErr != nil {
		return model.Booking{}, f.createErr
	}
	b := f.created
	b.BusinessID = in.BusinessID
	b.CustomerID = in.CustomerID
	return b, nil
}

func (f *fakeBookingService) Get(context.Context, *session.Claims, string) (model.Booking, error) {
	return model.Booking{}, apperr.NotFound("booking not found")
}

func (f *fakeBookingService) Confirm(context.Context, *session.Claims, string) (model.Booking, error) {
	return model.Booking{}, apperr.NotFound("booking not found")
}

func (f *fakeBookingService) Cancel(context.Context, *session.Claims, string) (model.Booking, error) {
	return model.Booking{}, apperr.NotFound("booking not found")
}

func (f *fakeBookingService) MarkNoShow(context.Context, *session.Claims, string) (model.Booking, error) {
	return model.Booking{}, apperr.NotFound("booking not found")
}

func (f *fakeBookingService) Complete(context.Context, *session.Claims, string) (model.Booking, error) {
	return model.Booking{}, apperr.NotFound("booking not found")
}

func (f *fakeBookingService) ListForBusiness(context.Context, *session.Claims, string, int) ([]model.Booking, error) {
	return nil, nil
}

func (f *fakeBookingService) ListForCustomer(context.Context, *session.Claims, string, int) ([]model.Booking, error) {
	return nil, nil
}

func inviteCreateBody(code string) string {
	return `{"business_id":"b1","staff_id":"s1","service_id":"sv1",` +
		`"customer_id":"c1","start_time":"2026-03-02T09:00:00Z","invite_code":"` + code + `"}`
}

func newInviteBookingHandler(svc *fakeBookingService) (*BookingHandler, *fakeLinks) {
	links := &fakeLinks{links: map[string]model.InvitationLink{
		"last-use": {
			ID:         "l1",
			BusinessID: "b1",
			Code:       "last-use",
			CreatedBy:  "o1",
			ExpiresAt:  time.Now().Add(time.Hour),
			MaxUses:    1,
			UsedCount:  0,
			IsActive:   true,
		},
	}}
	validator := invite.NewValidator(links, &fakeBusinesses{})
	return NewBookingHandler(svc, validator, discardLogger()), links
}

func TestCreateBookingRefundsInviteOnConflict(t *testing.T) {
	h, links := newInviteBookingHandler(&fakeBookingService{
		createErr: apperr.Conflict("requested slot is not available"),
	})

	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(inviteCreateBody("last-use")))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", rec.Code)
	}
	if got := links.links["last-use"].UsedCount; got != 0 {
		t.Fatalf("a failed create must not burn the invite use, used_count = %d", got)
	}

	// The refunded use still books once the slot conflict clears.
	h.manager = &fakeBookingService{created: model.Booking{ID: "bk-1", Status: model.StatusConfirmed}}
	req = httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(inviteCreateBody("last-use")))
	rec = httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("retry status: got %d, want 201", rec.Code)
	}
	if got := links.links["last-use"].UsedCount; got != 1 {
		t.Fatalf("a successful create must keep the consumed use, used_count = %d", got)
	}
}

func TestCreateBookingRefundsInviteOnBusinessMismatch(t *testing.T) {
	h, links := newInviteBookingHandler(&fakeBookingService{})

	body := strings.Replace(inviteCreateBody("last-use"), `"business_id":"b1"`, `"business_id":"b2"`, 1)
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", rec.Code)
	}
	if got := links.links["last-use"].UsedCount; got != 0 {
		t.Fatalf("a rejected invite must not burn the use, used_count = %d", got)
	}
}
