package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/renovo/backend/internal/httpx"
	"github.com/renovo/backend/internal/session"
)

// SessionResolver turns a bearer token into the caller's session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// Authenticate resolves the bearer token and stores the session in the
// request context. Browsers cannot set headers on a websocket upgrade, so a
// ?token= query parameter is accepted as well.
func Authenticate(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				httpx.Error(w, http.StatusUnauthorized, "missing or malformed Authorization header")
				return
			}

			sess, err := sessions.Resolve(r.Context(), raw)
			if errors.Is(err, session.ErrUnauthenticated) {
				httpx.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if err != nil {
				httpx.Error(w, http.StatusServiceUnavailable, "session lookup failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// RequireRole rejects sessions whose role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range roles {
				if sess.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Error(w, http.StatusForbidden, "forbidden for role "+sess.Role)
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
