package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nazmul-hoque/bookline/internal/invite"
	"github.com/nazmul-hoque/bookline/internal/model"
)

type fakeLinks struct {
	links map[string]model.InvitationLink
}

func (f *fakeLinks) GetByCode(_ context.Context, code string) (model.InvitationLink, error) {
	l, ok := f.links[code]
	if !ok {
		return model.InvitationLink{}, pgx.ErrNoRows
	}
	return l, nil
}

func (f *fakeLinks) Consume(_ context.Context, code string, now time.Time) (model.InvitationLink, error) {
	l, ok := f.links[code]
	if !ok || !l.Usable(now) {
		return model.InvitationLink{}, pgx.ErrNoRows
	}
	l.UsedCount++
	f.links[code] = l
	return l, nil
}

func (f *fakeLinks) Release(_ context.Context, code string) error {
	l, ok := f.links[code]
	if !ok || l.UsedCount == 0 {
		return pgx.ErrNoRows
	}
	l.UsedCount--
	f.links[code] = l
	return nil
}

type fakeBusinesses struct {
	businesses map[string]model.Business
}

func (f *fakeBusinesses) GetByID(_ context.Context, id string) (model.Business, error) {
	b, ok := f.businesses[id]
	if !ok {
		return model.Business{}, pgx.ErrNoRows
	}
	return b, nil
}

func TestInviteValidityEndpoint(t *testing.T) {
	now := time.Now()
	links := &fakeLinks{links: map[string]model.InvitationLink{
		"live": {
			ID:         "l1",
			BusinessID: "b1",
			Code:       "live",
			CreatedBy:  "o1",
			ExpiresAt:  now.Add(time.Hour),
			MaxUses:    5,
			UsedCount:  2,
			IsActive:   true,
		},
		"stale": {
			ID:         "l2",
			BusinessID: "b1",
			Code:       "stale",
			CreatedBy:  "o1",
			ExpiresAt:  now.Add(-time.Hour),
			MaxUses:    5,
			UsedCount:  0,
			IsActive:   true,
		},
	}}
	businesses := &fakeBusinesses{businesses: map[string]model.Business{
		"b1": {ID: "b1", Name: "Fade & Co"},
	}}

	h := NewInviteHandler(invite.NewValidator(links, businesses), nil, nil, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/invites?code=live", nil)
	rec := httptest.NewRecorder()
	h.Validity(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
	}

	var got struct {
		IsValid   bool `json:"isValid"`
		IsExpired bool `json:"isExpired"`
		IsUsedUp  bool `json:"isUsedUp"`
		Business  struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"business"`
		InvitedBy     string `json:"invitedBy"`
		RemainingUses int    `json:"remainingUses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.IsValid || got.IsExpired || got.IsUsedUp {
		t.Errorf("flags = %+v", got)
	}
	if got.Business.ID != "b1" || got.Business.Name != "Fade & Co" {
		t.Errorf("business = %+v", got.Business)
	}
	if got.InvitedBy != "o1" || got.RemainingUses != 3 {
		t.Errorf("invitedBy=%q remainingUses=%d", got.InvitedBy, got.RemainingUses)
	}

	// Expired link: valid lookup, invalid flags.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/public/invites?code=stale", nil)
	rec = httptest.NewRecorder()
	h.Validity(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.IsValid || !got.IsExpired {
		t.Errorf("expired link flags = %+v", got)
	}

	// Unknown code is a 404.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/public/invites?code=nope", nil)
	rec = httptest.NewRecorder()
	h.Validity(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown code: %d", rec.Code)
	}

	// Missing code is a validation error.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/public/invites", nil)
	rec = httptest.NewRecorder()
	h.Validity(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing code: %d", rec.Code)
	}
}
