// Package session issues and validates the signed session cookie and the
// per-session CSRF token. The cookie value is a compact HMAC-SHA256 token;
// validation trusts nothing but the signature and expiry.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nazmul-hoque/bookline/internal/apperr"
)

const (
	CookieName = "bookline_session"
	CSRFHeader = "X-CSRF-Token"
)

type SubjectKind string

const (
	KindOwner    SubjectKind = "owner"
	KindCustomer SubjectKind = "customer"
)

type Claims struct {
	Sub      string      `json:"sub"`
	Kind     SubjectKind `json:"kind"`
	CSRFHash string      `json:"csrf"`
	Iat      int64       `json:"iat"`
	Exp      int64       `json:"exp"`
}

type Manager struct {
	secret string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: secret, ttl: ttl, secure: secure, now: time.Now}
}

// Issue mints a session token for the subject together with a fresh CSRF
// token. Only the CSRF token's hash is embedded in the signed claims, so
// rotating the session invalidates the previous CSRF token with it.
func (m *Manager) Issue(subjectID string, kind SubjectKind) (token string, csrfToken string, err error) {
	csrfToken, err = newRandomToken()
	if err != nil {
		return "", "", err
	}
	now := m.now()
	claims := Claims{
		Sub:      subjectID,
		Kind:     kind,
		CSRFHash: HashToken(csrfToken),
		Iat:      now.Unix(),
		Exp:      now.Add(m.ttl).Unix(),
	}
	token, err = sign(claims, m.secret)
	if err != nil {
		return "", "", err
	}
	return token, csrfToken, nil
}

// Verify checks signature and expiry and returns the claims. It never trusts
// client-supplied subject fields without a valid signature.
func (m *Manager) Verify(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, apperr.Unauthorized("malformed session token")
	}
	unsigned := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(hmacSHA256(unsigned, m.secret))) {
		return nil, apperr.Unauthorized("session signature mismatch")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, apperr.Unauthorized("malformed session payload")
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, apperr.Unauthorized("malformed session payload")
	}
	if claims.Exp <= 0 || m.now().Unix() > claims.Exp {
		return nil, apperr.Unauthorized("session expired")
	}
	if claims.Sub == "" {
		return nil, apperr.Unauthorized("session has no subject")
	}
	return &claims, nil
}

// VerifyCSRF compares the plain token from the request header against the
// hash bound into the session claims. A missing or mismatched token is
// Forbidden, distinct from the Unauthorized of a missing session.
func (m *Manager) VerifyCSRF(claims *Claims, headerToken string) error {
	headerToken = strings.TrimSpace(headerToken)
	if headerToken == "" {
		return apperr.Forbidden("missing csrf token")
	}
	if !hmac.Equal([]byte(HashToken(headerToken)), []byte(claims.CSRFHash)) {
		return apperr.Forbidden("csrf token mismatch")
	}
	return nil
}

// Cookie wraps a session token for the browser. HTTP-only and SameSite=Lax
// always; Secure in production.
func (m *Manager) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func sign(claims Claims, secret string) (string, error) {
	header := map[string]string{
		"alg": "HS256",
		"typ": "JWT",
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	headerEnc := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadEnc := base64.RawURLEncoding.EncodeToString(payloadJSON)
	unsigned := headerEnc + "." + payloadEnc
	return unsigned + "." + hmacSHA256(unsigned, secret), nil
}

func hmacSHA256(data, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func newRandomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
