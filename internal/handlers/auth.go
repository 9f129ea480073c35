package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/identity"
	"github.com/nazmul-hoque/bookline/internal/session"
	"github.com/nazmul-hoque/bookline/internal/storage"
)

// AuthHandler exchanges chat-app login codes for session cookies. Owners and
// customers share the flow; the requested role decides which table the
// profile upserts into and which SubjectKind the session carries.
type AuthHandler struct {
	provider  identity.Provider
	sessions  *session.Manager
	owners    *storage.OwnerRepository
	customers *storage.CustomerRepository
	logger    *slog.Logger
}

func NewAuthHandler(provider identity.Provider, sessions *session.Manager, owners *storage.OwnerRepository, customers *storage.CustomerRepository, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider:  provider,
		sessions:  sessions,
		owners:    owners,
		customers: customers,
		logger:    logger,
	}
}

type loginRequest struct {
	Code string `json:"code"`
	Role string `json:"role"` // owner | customer
}

type loginResponse struct {
	SubjectID   string `json:"subject_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	CSRFToken   string `json:"csrf_token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Role = strings.TrimSpace(strings.ToLower(req.Role))
	if req.Role != "owner" && req.Role != "customer" {
		writeError(w, h.logger, apperr.Validation("role must be owner or customer"))
		return
	}

	user, err := h.provider.Exchange(r.Context(), req.Code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var subjectID string
	var displayName string
	var kind session.SubjectKind
	switch req.Role {
	case "owner":
		owner, err := h.owners.UpsertByExternalID(r.Context(), user.ExternalID, user.DisplayName, user.AvatarURL)
		if err != nil {
			writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "upsert owner", err))
			return
		}
		subjectID, displayName, kind = owner.ID, owner.DisplayName, session.KindOwner
	case "customer":
		customer, err := h.customers.UpsertByExternalID(r.Context(), user.ExternalID, user.DisplayName, user.AvatarURL)
		if err != nil {
			writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "upsert customer", err))
			return
		}
		subjectID, displayName, kind = customer.ID, customer.DisplayName, session.KindCustomer
	}

	token, csrfToken, err := h.sessions.Issue(subjectID, kind)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "issue session", err))
		return
	}

	h.logger.Info("login", "subject_id", subjectID, "role", req.Role)
	http.SetCookie(w, h.sessions.Cookie(token))
	writeJSON(w, http.StatusOK, loginResponse{
		SubjectID:   subjectID,
		Role:        req.Role,
		DisplayName: displayName,
		CSRFToken:   csrfToken,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	http.SetCookie(w, h.sessions.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := requireClaims(r, "")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := map[string]any{
		"subject_id": claims.Sub,
		"role":       string(claims.Kind),
	}
	switch claims.Kind {
	case session.KindOwner:
		if owner, err := h.owners.GetByID(r.Context(), claims.Sub); err == nil {
			resp["display_name"] = owner.DisplayName
			resp["subscription_active"] = owner.SubscriptionActive
		}
	case session.KindCustomer:
		if customer, err := h.customers.GetByID(r.Context(), claims.Sub); err == nil {
			resp["display_name"] = customer.DisplayName
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
