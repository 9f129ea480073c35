package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/session"
	"github.com/nazmul-hoque/bookline/libs/httpx"
)

type sessionCtxKey int

const claimsKey sessionCtxKey = 0

// ClaimsFromContext returns the verified session claims, or nil when the
// request carried no valid session cookie.
func ClaimsFromContext(ctx context.Context) *session.Claims {
	claims, _ := ctx.Value(claimsKey).(*session.Claims)
	return claims
}

// WithSession parses and verifies the session cookie when present. An
// invalid or expired cookie just yields an anonymous request; handlers that
// need a subject return 401 themselves.
func WithSession(mgr *session.Manager) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err == nil && cookie.Value != "" {
				if claims, err := mgr.Verify(cookie.Value); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithCSRF rejects state-changing requests whose X-CSRF-Token header does
// not match the hash bound into the session. Requests without a session
// pass through: they carry no ambient credential for a cross-site page to
// ride on.
func WithCSRF(mgr *session.Manager, logger *slog.Logger) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}
			if err := mgr.VerifyCSRF(claims, r.Header.Get(session.CSRFHeader)); err != nil {
				writeError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireClaims is the guard handlers use for endpoints that demand a
// session of a specific kind.
func requireClaims(r *http.Request, kind session.SubjectKind) (*session.Claims, error) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return nil, apperr.Unauthorized("login required")
	}
	if kind != "" && claims.Kind != kind {
		return nil, apperr.Forbidden("wrong account type")
	}
	return claims, nil
}
