package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/invite"
	"github.com/nazmul-hoque/bookline/internal/storage"
)

type InviteHandler struct {
	validator *invite.Validator
	invites   *storage.InviteRepository
	business  *BusinessHandler
	logger    *slog.Logger
}

func NewInviteHandler(validator *invite.Validator, invites *storage.InviteRepository, business *BusinessHandler, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{validator: validator, invites: invites, business: business, logger: logger}
}

// Validity is public and read-only: the chat client renders the invitation
// preview from it before the customer has any session.
func (h *InviteHandler) Validity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, h.logger, apperr.Validation("code is required"))
		return
	}

	v, err := h.validator.Validate(r.Context(), code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"isValid":   v.IsValid,
		"isExpired": v.IsExpired,
		"isUsedUp":  v.IsUsedUp,
		"business": map[string]string{
			"id":   v.BusinessID,
			"name": v.BusinessName,
		},
		"invitedBy":     v.InvitedBy,
		"expiresAt":     v.ExpiresAt.UTC().Format(time.RFC3339),
		"remainingUses": v.RemainingUses,
	})
}

type createInviteRequest struct {
	BusinessID string `json:"business_id"`
	ExpiresAt  string `json:"expires_at"`
	MaxUses    int    `json:"max_uses"`
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	biz, claims, err := h.business.owned(r, strings.TrimSpace(req.BusinessID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	expiresAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ExpiresAt))
	if err != nil || !expiresAt.After(time.Now()) {
		writeError(w, h.logger, apperr.Validation("expires_at must be a future RFC3339 instant"))
		return
	}
	if req.MaxUses <= 0 {
		writeError(w, h.logger, apperr.Validation("max_uses must be positive"))
		return
	}

	link, err := h.invites.Create(r.Context(), biz.ID, claims.Sub, expiresAt, req.MaxUses)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "create invitation link", err))
		return
	}
	h.logger.Info("invitation link created", "business_id", biz.ID, "link_id", link.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"link_id":    link.ID,
		"code":       link.Code,
		"expires_at": link.ExpiresAt.UTC().Format(time.RFC3339),
		"max_uses":   link.MaxUses,
	})
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	biz, _, err := h.business.owned(r, strings.TrimSpace(r.URL.Query().Get("business_id")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.invites.ListByBusiness(r.Context(), biz.ID, limit)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "list invitation links", err))
		return
	}
	now := time.Now()
	out := make([]map[string]any, 0, len(list))
	for _, l := range list {
		out = append(out, map[string]any{
			"link_id":    l.ID,
			"code":       l.Code,
			"expires_at": l.ExpiresAt.UTC().Format(time.RFC3339),
			"max_uses":   l.MaxUses,
			"used_count": l.UsedCount,
			"is_active":  l.IsActive,
			"is_valid":   l.Usable(now),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": out})
}

func (h *InviteHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	biz, _, err := h.business.owned(r, strings.TrimSpace(q.Get("business_id")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	linkID := strings.TrimSpace(q.Get("link_id"))
	if linkID == "" {
		writeError(w, h.logger, apperr.Validation("link_id is required"))
		return
	}
	if err := h.invites.Deactivate(r.Context(), biz.ID, linkID); err != nil {
		if storage.IsNotFound(err) {
			writeError(w, h.logger, apperr.NotFound("invitation link not found"))
			return
		}
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "deactivate invitation link", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
