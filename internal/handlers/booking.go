package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/booking"
	"github.com/nazmul-hoque/bookline/internal/invite"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/session"
)

// BookingService is what the handler needs from the lifecycle manager.
type BookingService interface {
	AvailableSlots(ctx context.Context, businessID, staffID, serviceID string, from, to time.Time) ([]time.Time, error)
	Create(ctx context.Context, in booking.CreateInput) (model.Booking, error)
	Get(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error)
	Confirm(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error)
	Cancel(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error)
	MarkNoShow(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error)
	Complete(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error)
	ListForBusiness(ctx context.Context, claims *session.Claims, businessID string, limit int) ([]model.Booking, error)
	ListForCustomer(ctx context.Context, claims *session.Claims, customerID string, limit int) ([]model.Booking, error)
}

type BookingHandler struct {
	manager BookingService
	invites *invite.Validator
	logger  *slog.Logger
}

func NewBookingHandler(manager BookingService, invites *invite.Validator, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{manager: manager, invites: invites, logger: logger}
}

// Availability is public: anyone deciding whether to book may see free slots.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	businessID := strings.TrimSpace(q.Get("business_id"))
	staffID := strings.TrimSpace(q.Get("staff_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	if businessID == "" || staffID == "" || serviceID == "" {
		writeError(w, h.logger, apperr.Validation("business_id, staff_id and service_id are required"))
		return
	}
	from, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("from")))
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid from"))
		return
	}
	to, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("to")))
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid to"))
		return
	}
	if !to.After(from) || to.Sub(from) > 31*24*time.Hour {
		writeError(w, h.logger, apperr.Validation("range must be positive and at most 31 days"))
		return
	}

	slots, err := h.manager.AvailableSlots(r.Context(), businessID, staffID, serviceID, from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.UTC().Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": out})
}

type createBookingRequest struct {
	BusinessID string `json:"business_id"`
	StaffID    string `json:"staff_id"`
	ServiceID  string `json:"service_id"`
	CustomerID string `json:"customer_id"`
	StartTime  string `json:"start_time"`
	InviteCode string `json:"invite_code"`
}

// Create books a slot. A customer session authorizes directly; without one
// the request must carry a consumable invitation code for the business.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.InviteCode = strings.TrimSpace(req.InviteCode)

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid start_time"))
		return
	}

	consumedCode := ""
	claims := ClaimsFromContext(r.Context())
	switch {
	case claims != nil && claims.Kind == session.KindCustomer:
		// The session decides who books, never the body.
		req.CustomerID = claims.Sub
	case req.InviteCode != "":
		link, err := h.invites.Consume(r.Context(), req.InviteCode)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if link.BusinessID != req.BusinessID {
			h.refundInvite(r.Context(), req.InviteCode)
			writeError(w, h.logger, apperr.Forbidden("invitation is for another business"))
			return
		}
		if req.CustomerID == "" {
			h.refundInvite(r.Context(), req.InviteCode)
			writeError(w, h.logger, apperr.Validation("customer_id is required"))
			return
		}
		consumedCode = req.InviteCode
	default:
		writeError(w, h.logger, apperr.Unauthorized("login or invitation code required"))
		return
	}

	b, err := h.manager.Create(r.Context(), booking.CreateInput{
		BusinessID: req.BusinessID,
		StaffID:    req.StaffID,
		ServiceID:  req.ServiceID,
		CustomerID: req.CustomerID,
		StartTime:  start,
	})
	if err != nil {
		// A failed create must not burn the invitation use.
		if consumedCode != "" {
			h.refundInvite(r.Context(), consumedCode)
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingPayload(b))
}

func (h *BookingHandler) refundInvite(ctx context.Context, code string) {
	if err := h.invites.Release(ctx, code); err != nil {
		h.logger.Warn("invite release failed", "err", err)
	}
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("booking_id"))
	if id == "" {
		writeError(w, h.logger, apperr.Validation("booking_id is required"))
		return
	}
	b, err := h.manager.Get(r.Context(), ClaimsFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, hideForbidden(err))
		return
	}
	writeJSON(w, http.StatusOK, bookingPayload(b))
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.Confirm)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.Cancel)
}

func (h *BookingHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.MarkNoShow)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.manager.Complete)
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, claims *session.Claims, bookingID string) (model.Booking, error)) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("booking_id"))
	if id == "" {
		writeError(w, h.logger, apperr.Validation("booking_id is required"))
		return
	}
	b, err := fn(r.Context(), ClaimsFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingPayload(b))
}

func (h *BookingHandler) ListForBusiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		writeError(w, h.logger, apperr.Validation("business_id is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.manager.ListForBusiness(r.Context(), ClaimsFromContext(r.Context()), businessID, limit)
	if err != nil {
		writeError(w, h.logger, hideForbidden(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookingPayloads(out)})
}

func (h *BookingHandler) ListForCustomer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := requireClaims(r, session.KindCustomer)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.manager.ListForCustomer(r.Context(), claims, claims.Sub, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookingPayloads(out)})
}

// hideForbidden collapses Forbidden into NotFound on read endpoints, so a
// caller probing for another tenant's resource learns nothing from the
// status code.
func hideForbidden(err error) error {
	if apperr.IsKind(err, apperr.KindForbidden) {
		return apperr.NotFound("not found")
	}
	return err
}

type bookingResponse struct {
	BookingID  string `json:"booking_id"`
	BusinessID string `json:"business_id"`
	StaffID    string `json:"staff_id"`
	ServiceID  string `json:"service_id"`
	CustomerID string `json:"customer_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
	NoShow     bool   `json:"no_show"`
}

func bookingPayload(b model.Booking) bookingResponse {
	return bookingResponse{
		BookingID:  b.ID,
		BusinessID: b.BusinessID,
		StaffID:    b.StaffID,
		ServiceID:  b.ServiceID,
		CustomerID: b.CustomerID,
		StartTime:  b.StartTime.UTC().Format(time.RFC3339),
		EndTime:    b.EndTime.UTC().Format(time.RFC3339),
		Status:     string(b.Status),
		NoShow:     b.NoShow,
	}
}

func bookingPayloads(bs []model.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, bookingPayload(b))
	}
	return out
}
