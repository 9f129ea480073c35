package booking

import "github.com/nazmul-hoque/bookline/internal/model"

// CanTransition enforces the booking state machine:
//
//	pending   -> confirmed | cancelled
//	confirmed -> completed | cancelled
//
// completed and cancelled are terminal. No-show is a completed booking with
// the no_show flag set; it follows the confirmed -> completed edge.
func CanTransition(from, to model.BookingStatus) bool {
	switch from {
	case model.StatusPending:
		return to == model.StatusConfirmed || to == model.StatusCancelled
	case model.StatusConfirmed:
		return to == model.StatusCompleted || to == model.StatusCancelled
	default:
		return false
	}
}

// InitialStatus is pending unless the business auto-confirms new bookings.
func InitialStatus(biz model.Business) model.BookingStatus {
	if biz.AutoConfirm {
		return model.StatusConfirmed
	}
	return model.StatusPending
}
