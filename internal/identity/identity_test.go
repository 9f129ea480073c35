package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nazmul-hoque/bookline/internal/apperr"
)

func TestChatProviderExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/exchange" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Code         string `json:"code"`
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.ClientID != "cid" || body.ClientSecret != "secret" {
			t.Errorf("client credentials not forwarded: %+v", body)
		}
		switch body.Code {
		case "good":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"user_id":      "u-123",
				"display_name": "Aki",
				"avatar_url":   "https://cdn.example/aki.png",
			})
		case "flaky":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	p := NewChatProvider(srv.URL, "cid", "secret")

	u, err := p.Exchange(context.Background(), "good")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if u.ExternalID != "u-123" || u.DisplayName != "Aki" {
		t.Errorf("unexpected user %+v", u)
	}

	if _, err := p.Exchange(context.Background(), "bad"); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Errorf("rejected code: got %v, want unauthorized", err)
	}
	if _, err := p.Exchange(context.Background(), "flaky"); !apperr.IsKind(err, apperr.KindTransient) {
		t.Errorf("5xx: got %v, want transient", err)
	}
	if _, err := p.Exchange(context.Background(), "  "); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("empty code: got %v, want validation", err)
	}
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{User: User{ExternalID: "dev-user", DisplayName: "Dev"}}
	u, err := p.Exchange(context.Background(), "anything")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if u.ExternalID != "dev-user" {
		t.Errorf("got %q", u.ExternalID)
	}
	if _, err := p.Exchange(context.Background(), ""); err == nil {
		t.Error("empty code should fail")
	}
}
