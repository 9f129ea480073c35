// Package identity verifies chat-app login codes. The booking app carries no
// passwords of its own; the surrounding chat platform authenticates users and
// hands the frontend a one-time code we exchange here for a stable user id.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nazmul-hoque/bookline/internal/apperr"
)

// User is the chat-app profile a verified code resolves to. ExternalID is
// stable across logins and keys the owner/customer upsert.
type User struct {
	ExternalID  string
	DisplayName string
	AvatarURL   string
}

type Provider interface {
	Exchange(ctx context.Context, code string) (User, error)
}

// ChatProvider calls the chat platform's token-exchange endpoint.
type ChatProvider struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
}

func NewChatProvider(baseURL, clientID, clientSecret string) *ChatProvider {
	return &ChatProvider{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (p *ChatProvider) Exchange(ctx context.Context, code string) (User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return User{}, apperr.Validation("login code is required")
	}
	if p.baseURL == "" {
		return User{}, apperr.New(apperr.KindUnknown, "identity provider not configured")
	}

	payload := map[string]string{
		"code":          code,
		"client_id":     p.clientID,
		"client_secret": p.clientSecret,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return User{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/oauth/exchange", bytes.NewReader(raw))
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return User{}, apperr.Transient("identity provider unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return User{}, apperr.Unauthorized("login code rejected")
	case resp.StatusCode >= 500:
		return User{}, apperr.Transient("identity provider error", nil)
	default:
		return User{}, apperr.New(apperr.KindUnknown, "unexpected identity provider response")
	}

	var body struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return User{}, apperr.Wrap(apperr.KindUnknown, "decode identity response", err)
	}
	if body.UserID == "" {
		return User{}, apperr.Unauthorized("login code rejected")
	}
	return User{
		ExternalID:  body.UserID,
		DisplayName: body.DisplayName,
		AvatarURL:   body.AvatarURL,
	}, nil
}

// StaticProvider resolves any non-empty code to a fixed user. Local
// development only.
type StaticProvider struct {
	User User
}

func (p StaticProvider) Exchange(_ context.Context, code string) (User, error) {
	if strings.TrimSpace(code) == "" {
		return User{}, apperr.Validation("login code is required")
	}
	return p.User, nil
}
