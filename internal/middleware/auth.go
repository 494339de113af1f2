package middleware

import (
	"context"
	"net/http"

	"github.com/onetarget777/kachra-site/internal/session"
)

type contextKey string

const claimsKey contextKey = "session_claims"

// Identity resolves the session cookie, if present, and stores the
// verified claims in the request context. An absent or invalid cookie
// leaves the request anonymous; endpoints decide what that means.
func Identity(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err == nil && cookie.Value != "" {
				if claims, err := sessions.Parse(cookie.Value); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the verified session claims, if any.
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*session.Claims)
	return claims, ok
}
