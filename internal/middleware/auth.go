package middleware

import (
	"net/http"
	"weaponcam/internal/auth"
)

// SessionCookie carries the signed session token set by the login handler.
const SessionCookie = "session"

// LoginPath is reachable without a session.
const LoginPath = "/auth/login"

// AuthMiddleware rejects requests without a valid session cookie.
func AuthMiddleware(sessions *auth.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == LoginPath {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(SessionCookie)
			if err != nil || sessions.Validate(cookie.Value) != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
