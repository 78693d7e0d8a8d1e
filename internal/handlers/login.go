package handlers

import (
	"net/http"
	"weaponcam/internal/auth"
	"weaponcam/internal/config"
	"weaponcam/internal/logger"
	"weaponcam/internal/middleware"
)

// LoginHandler issues a session cookie when the configured password matches.
func LoginHandler(cfg *config.Config, sessions *auth.Sessions, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !auth.CheckPassword(cfg.Password, r.FormValue("password")) {
			logger.Warning("🔒 Failed login attempt from %s", r.RemoteAddr)
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		token, expiresAt, err := sessions.Issue()
		if err != nil {
			logger.Error("Failed to issue session: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    token,
			Path:     "/",
			Expires:  expiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		logger.Info("🔓 Operator logged in from %s", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	}
}
