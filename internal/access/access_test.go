package access

import (
	"testing"

	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/session"
)

func TestRequireBusinessOwner(t *testing.T) {
	biz := model.Business{ID: "biz-x", OwnerID: "owner-a"}

	if err := RequireBusinessOwner(&session.Claims{Sub: "owner-a", Kind: session.KindOwner}, biz); err != nil {
		t.Fatalf("owner of biz-x must pass: %v", err)
	}
	err := RequireBusinessOwner(&session.Claims{Sub: "owner-b", Kind: session.KindOwner}, biz)
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("another owner must be Forbidden, got %v", err)
	}
	err = RequireBusinessOwner(&session.Claims{Sub: "owner-a", Kind: session.KindCustomer}, biz)
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("a customer session must not pass the owner check, got %v", err)
	}
	if err := RequireBusinessOwner(nil, biz); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("nil session must be Unauthorized, got %v", err)
	}
}

func TestRequireBookingAccess(t *testing.T) {
	biz := model.Business{ID: "biz-x", OwnerID: "owner-a"}
	booking := model.Booking{ID: "bk-1", BusinessID: "biz-x", CustomerID: "cust-1"}

	owner := &session.Claims{Sub: "owner-a", Kind: session.KindOwner}
	if err := RequireBookingAccess(owner, booking, biz); err != nil {
		t.Fatalf("business owner must access its booking: %v", err)
	}

	customer := &session.Claims{Sub: "cust-1", Kind: session.KindCustomer}
	if err := RequireBookingAccess(customer, booking, biz); err != nil {
		t.Fatalf("the booking's customer must access it: %v", err)
	}

	stranger := &session.Claims{Sub: "cust-2", Kind: session.KindCustomer}
	if err := RequireBookingAccess(stranger, booking, biz); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("another customer must be Forbidden, got %v", err)
	}

	otherOwner := &session.Claims{Sub: "owner-b", Kind: session.KindOwner}
	if err := RequireBookingAccess(otherOwner, booking, biz); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("owner of another business must be Forbidden, got %v", err)
	}
}
