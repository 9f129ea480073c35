package handlers

import (
	"log/slog"
	"net/http"

	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/billing"
	"github.com/nazmul-hoque/bookline/internal/session"
	"github.com/nazmul-hoque/bookline/internal/storage"
)

type BillingHandler struct {
	service *billing.Service
	owners  *storage.OwnerRepository
	logger  *slog.Logger
}

func NewBillingHandler(service *billing.Service, owners *storage.OwnerRepository, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{service: service, owners: owners, logger: logger}
}

// PortalSession hands the owner off to Stripe's hosted billing portal.
func (h *BillingHandler) PortalSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := requireClaims(r, session.KindOwner)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.service.Configured() {
		http.Error(w, "billing not configured", http.StatusNotImplemented)
		return
	}
	owner, err := h.owners.GetByID(r.Context(), claims.Sub)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "load owner", err))
		return
	}
	url, err := h.service.PortalSession(r.Context(), owner)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Subscription reports, and refreshes from Stripe, the owner's
// subscription-active flag.
func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := requireClaims(r, session.KindOwner)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	owner, err := h.owners.GetByID(r.Context(), claims.Sub)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "load owner", err))
		return
	}
	active, err := h.service.Refresh(r.Context(), owner)
	if err != nil && !apperr.IsKind(err, apperr.KindTransient) {
		writeError(w, h.logger, err)
		return
	}
	// On a transient Stripe failure serve the cached flag.
	writeJSON(w, http.StatusOK, map[string]any{"subscription_active": active})
}
