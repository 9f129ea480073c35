// Package access centralizes the tenant ownership checks every mutating
// operation runs. Lookups that find no row are NotFound; rows that exist but
// fail the ownership test are Forbidden, and callers decide whether the
// requester is allowed to see the difference.
package access

import (
	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/session"
)

// RequireBusinessOwner grants access when the session subject owns the
// business.
func RequireBusinessOwner(claims *session.Claims, business model.Business) error {
	if claims == nil {
		return apperr.Unauthorized("no session")
	}
	if claims.Kind != session.KindOwner || claims.Sub != business.OwnerID {
		return apperr.Forbidden("business belongs to another owner")
	}
	return nil
}

// RequireBookingAccess grants access to a booking for the owning business's
// owner, or for the booking's own customer.
func RequireBookingAccess(claims *session.Claims, booking model.Booking, business model.Business) error {
	if claims == nil {
		return apperr.Unauthorized("no session")
	}
	if claims.Kind == session.KindOwner && claims.Sub == business.OwnerID {
		return nil
	}
	if claims.Kind == session.KindCustomer && claims.Sub == booking.CustomerID {
		return nil
	}
	return apperr.Forbidden("booking belongs to another tenant")
}

// RequireCustomer grants access when the session subject is the given
// customer.
func RequireCustomer(claims *session.Claims, customerID string) error {
	if claims == nil {
		return apperr.Unauthorized("no session")
	}
	if claims.Kind != session.KindCustomer || claims.Sub != customerID {
		return apperr.Forbidden("not this customer")
	}
	return nil
}
