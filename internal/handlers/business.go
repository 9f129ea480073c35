package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nazmul-hoque/bookline/internal/access"
	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/session"
	"github.com/nazmul-hoque/bookline/internal/storage"
)

// BusinessHandler serves the owner-managed CRUD entities. Every endpoint
// resolves the business first and checks ownership; a business the caller
// does not own reads as 404.
type BusinessHandler struct {
	businesses *storage.BusinessRepository
	owners     *storage.OwnerRepository
	logger     *slog.Logger
}

func NewBusinessHandler(businesses *storage.BusinessRepository, owners *storage.OwnerRepository, logger *slog.Logger) *BusinessHandler {
	return &BusinessHandler{businesses: businesses, owners: owners, logger: logger}
}

// owned loads the business and verifies the session owns it. Forbidden is
// collapsed to NotFound: the caller has no prior access to this resource.
func (h *BusinessHandler) owned(r *http.Request, businessID string) (model.Business, *session.Claims, error) {
	claims, err := requireClaims(r, session.KindOwner)
	if err != nil {
		return model.Business{}, nil, err
	}
	biz, err := h.businesses.GetByID(r.Context(), businessID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Business{}, nil, apperr.NotFound("business not found")
		}
		return model.Business{}, nil, apperr.Wrap(apperr.KindUnknown, "load business", err)
	}
	if err := access.RequireBusinessOwner(claims, biz); err != nil {
		return model.Business{}, nil, hideForbidden(err)
	}
	return biz, claims, nil
}

// requireSubscription gates creation of bookable inventory on an active
// subscription. Reads and edits of existing rows stay open.
func (h *BusinessHandler) requireSubscription(r *http.Request, claims *session.Claims) error {
	owner, err := h.owners.GetByID(r.Context(), claims.Sub)
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, "load owner", err)
	}
	if !owner.SubscriptionActive {
		return apperr.Forbidden("active subscription required")
	}
	return nil
}

type createBusinessRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

func (h *BusinessHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := requireClaims(r, session.KindOwner)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req createBusinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Name == "" {
		writeError(w, h.logger, apperr.Validation("name is required"))
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, h.logger, apperr.Validation("invalid timezone"))
		return
	}

	biz, err := h.businesses.Create(r.Context(), claims.Sub, req.Name, req.Timezone)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "create business", err))
		return
	}
	h.logger.Info("business created", "business_id", biz.ID, "owner_id", claims.Sub)
	writeJSON(w, http.StatusCreated, businessPayload(biz))
}

func (h *BusinessHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := requireClaims(r, session.KindOwner)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := h.businesses.ListByOwner(r.Context(), claims.Sub)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "list businesses", err))
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, b := range list {
		out = append(out, businessPayload(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"businesses": out})
}

func (h *BusinessHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	biz, _, err := h.owned(r, strings.TrimSpace(r.URL.Query().Get("business_id")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, businessPayload(biz))
}

type updateBusinessRequest struct {
	Name               string `json:"name"`
	Timezone           string `json:"timezone"`
	SlotStepMinutes    *int   `json:"slot_step_minutes"`
	MinLeadTimeMinutes *int   `json:"min_lead_time_minutes"`
	AutoConfirm        *bool  `json:"auto_confirm"`
	IsActive           *bool  `json:"is_active"`
}

func (h *BusinessHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	biz, _, err := h.owned(r, strings.TrimSpace(r.URL.Query().Get("business_id")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateBusinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		biz.Name = name
	}
	if tz := strings.TrimSpace(req.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			writeError(w, h.logger, apperr.Validation("invalid timezone"))
			return
		}
		biz.Timezone = tz
	}
	if req.SlotStepMinutes != nil {
		if *req.SlotStepMinutes <= 0 || *req.SlotStepMinutes > 24*60 {
			writeError(w, h.logger, apperr.Validation("slot_step_minutes out of range"))
			return
		}
		biz.SlotStepMinutes = *req.SlotStepMinutes
	}
	if req.MinLeadTimeMinutes != nil {
		if *req.MinLeadTimeMinutes < 0 {
			writeError(w, h.logger, apperr.Validation("min_lead_time_minutes must not be negative"))
			return
		}
		biz.MinLeadTimeMinutes = *req.MinLeadTimeMinutes
	}
	if req.AutoConfirm != nil {
		biz.AutoConfirm = *req.AutoConfirm
	}
	if req.IsActive != nil {
		biz.IsActive = *req.IsActive
	}

	if err := h.businesses.UpdateSettings(r.Context(), biz); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "update business", err))
		return
	}
	writeJSON(w, http.StatusOK, businessPayload(biz))
}

type staffRequest struct {
	BusinessID   string `json:"business_id"`
	StaffID      string `json:"staff_id"`
	Name         string `json:"name"`
	IsActive     *bool  `json:"is_active"`
	DisplayOrder int    `json:"display_order"`
}

func (h *BusinessHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req staffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	biz, claims, err := h.owned(r, strings.TrimSpace(req.BusinessID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.requireSubscription(r, claims); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, h.logger, apperr.Validation("name is required"))
		return
	}

	id, err := h.businesses.CreateStaff(r.Context(), biz.ID, req.Name, req.DisplayOrder)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "create staff", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"staff_id": id})
}

func (h *BusinessHandler) ListStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	biz, _, err := h.owned(r, strings.TrimSpace(r.URL.Query().Get("business_id")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := h.businesses.ListStaff(r.Context(), biz.ID)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "list staff", err))
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, s := range list {
		out = append(out, map[string]any{
			"staff_id":      s.ID,
			"name":          s.Name,
			"is_active":     s.IsActive,
			"display_order": s.DisplayOrder,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": out})
}

// UpdateStaff also serves deactivation: is_active=false is the only removal.
func (h *BusinessHandler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req staffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	biz, _, err := h.owned(r, strings.TrimSpace(req.BusinessID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	staff, err := h.businesses.GetStaff(r.Context(), biz.ID, strings.TrimSpace(req.StaffID))
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, h.logger, apperr.NotFound("staff not found"))
			return
		}
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "load staff", err))
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		staff.Name = name
	}
	if req.IsActive != nil {
		staff.IsActive = *req.IsActive
	}
	if req.DisplayOrder != 0 {
		staff.DisplayOrder = req.DisplayOrder
	}
	if err := h.businesses.UpdateStaff(r.Context(), biz.ID, staff.ID, staff.Name, staff.IsActive, staff.DisplayOrder); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "update staff", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type workingHoursRequest struct {
	BusinessID string `json:"business_id"`
	StaffID    string `json:"staff_id"`
	Hours      []struct {
		Weekday     int  `json:"weekday"`
		IsWorking   bool `json:"is_working"`
		StartMinute int  `json:"start_minute"`
		EndMinute   int  `json:"end_minute"`
	} `json:"hours"`
}

func (h *BusinessHandler) UpsertWorkingHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req workingHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	biz, _, err := h.owned(r, strings.TrimSpace(req.BusinessID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	staffID := strings.TrimSpace(req.StaffID)
	if staffID == "" || len(req.Hours) == 0 {
		writeError(w, h.logger, apperr.Validation("staff_id and hours are required"))
		return
	}
	for _, row := range req.Hours {
		if row.Weekday < 0 || row.Weekday > 6 {
			writeError(w, h.logger, apperr.Validation("weekday must be 0..6"))
			return
		}
		if row.IsWorking && (row.StartMinute < 0 || row.EndMinute > 24*60 || row.EndMinute <= row.StartMinute) {
			writeError(w, h.logger, apperr.Validation("start_minute/end_minute out of range"))
			return
		}
	}
	for _, row := range req.Hours {
		err := h.businesses.UpsertWorkingHours(r.Context(), biz.ID, model.WorkingHours{
			StaffID:     staffID,
			Weekday:     time.Weekday(row.Weekday),
			IsWorking:   row.IsWorking,
			StartMinute: row.StartMinute,
			EndMinute:   row.EndMinute,
		})
		if err != nil {
			if storage.IsNotFound(err) {
				writeError(w, h.logger, apperr.NotFound("staff not found"))
				return
			}
			writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "upsert working hours", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BusinessHandler) ListWorkingHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	biz, _, err := h.owned(r, strings.TrimSpace(r.URL.Query().Get("business_id")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	if staffID == "" {
		writeError(w, h.logger, apperr.Validation("staff_id is required"))
		return
	}
	hours, err := h.businesses.ListWorkingHours(r.Context(), biz.ID, staffID)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "list working hours", err))
		return
	}
	out := make([]map[string]any, 0, len(hours))
	for _, wh := range hours {
		out = append(out, map[string]any{
			"weekday":      int(wh.Weekday),
			"is_working":   wh.IsWorking,
			"start_minute": wh.StartMinute,
			"end_minute":   wh.EndMinute,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": out})
}

type serviceRequest struct {
	BusinessID   string `json:"business_id"`
	ServiceID    string `json:"service_id"`
	Name         string `json:"name"`
	DurationMins int    `json:"duration_minutes"`
	Price        string `json:"price"`
	IsActive     *bool  `json:"is_active"`
	DisplayOrder int    `json:"display_order"`
}

func (h *BusinessHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	biz, claims, err := h.owned(r, strings.TrimSpace(req.BusinessID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.requireSubscription(r, claims); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, h.logger, apperr.Validation("name is required"))
		return
	}
	if req.DurationMins <= 0 {
		writeError(w, h.logger, apperr.Validation("duration_minutes must be positive"))
		return
	}

	id, err := h.businesses.CreateService(r.Context(), model.Service{
		BusinessID:   biz.ID,
		Name:         req.Name,
		DurationMins: req.DurationMins,
		Price:        strings.TrimSpace(req.Price),
		IsActive:     true,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "create service", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"service_id": id})
}

func (h *BusinessHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	biz, _, err := h.owned(r, strings.TrimSpace(r.URL.Query().Get("business_id")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := h.businesses.ListServices(r.Context(), biz.ID)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "list services", err))
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, s := range list {
		out = append(out, map[string]any{
			"service_id":       s.ID,
			"name":             s.Name,
			"duration_minutes": s.DurationMins,
			"price":            s.Price,
			"is_active":        s.IsActive,
			"display_order":    s.DisplayOrder,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

func (h *BusinessHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	biz, _, err := h.owned(r, strings.TrimSpace(req.BusinessID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	svc, err := h.businesses.GetService(r.Context(), biz.ID, strings.TrimSpace(req.ServiceID))
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, h.logger, apperr.NotFound("service not found"))
			return
		}
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "load service", err))
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		svc.Name = name
	}
	if req.DurationMins > 0 {
		svc.DurationMins = req.DurationMins
	}
	if price := strings.TrimSpace(req.Price); price != "" {
		svc.Price = price
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}
	if req.DisplayOrder != 0 {
		svc.DisplayOrder = req.DisplayOrder
	}
	if err := h.businesses.UpdateService(r.Context(), svc); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "update service", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type closedDateRequest struct {
	BusinessID string `json:"business_id"`
	StaffID    string `json:"staff_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason"`
}

func (h *BusinessHandler) CreateClosedDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req closedDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	biz, _, err := h.owned(r, strings.TrimSpace(req.BusinessID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid start_time"))
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid end_time"))
		return
	}
	if !end.After(start) {
		writeError(w, h.logger, apperr.Validation("end_time must be after start_time"))
		return
	}

	id, err := h.businesses.CreateClosedDate(r.Context(), model.ClosedDate{
		BusinessID: biz.ID,
		StaffID:    strings.TrimSpace(req.StaffID),
		StartTime:  start,
		EndTime:    end,
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "create closed date", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"closed_date_id": id})
}

func (h *BusinessHandler) ListClosedDates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	biz, _, err := h.owned(r, strings.TrimSpace(q.Get("business_id")))
	if err != nil {
		writeError(w, h.logger, err)
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
	list, err := h.businesses.ListClosedDates(r.Context(), biz.ID, strings.TrimSpace(q.Get("staff_id")), from, to)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "list closed dates", err))
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, cd := range list {
		item := map[string]any{
			"closed_date_id": cd.ID,
			"start_time":     cd.StartTime.UTC().Format(time.RFC3339),
			"end_time":       cd.EndTime.UTC().Format(time.RFC3339),
			"reason":         cd.Reason,
		}
		if cd.StaffID != "" {
			item["staff_id"] = cd.StaffID
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed_dates": out})
}

func (h *BusinessHandler) DeleteClosedDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	biz, _, err := h.owned(r, strings.TrimSpace(q.Get("business_id")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id := strings.TrimSpace(q.Get("closed_date_id"))
	if id == "" {
		writeError(w, h.logger, apperr.Validation("closed_date_id is required"))
		return
	}
	if err := h.businesses.DeleteClosedDate(r.Context(), biz.ID, id); err != nil {
		if storage.IsNotFound(err) {
			writeError(w, h.logger, apperr.NotFound("closed date not found"))
			return
		}
		writeError(w, h.logger, apperr.Wrap(apperr.KindUnknown, "delete closed date", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func businessPayload(b model.Business) map[string]any {
	return map[string]any{
		"business_id":           b.ID,
		"name":                  b.Name,
		"timezone":              b.Timezone,
		"slot_step_minutes":     b.SlotStepMinutes,
		"min_lead_time_minutes": b.MinLeadTimeMinutes,
		"auto_confirm":          b.AutoConfirm,
		"is_active":             b.IsActive,
	}
}
