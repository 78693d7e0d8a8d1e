package routes

import (
	"net/http"
	"weaponcam/internal/auth"
	"weaponcam/internal/config"
	"weaponcam/internal/handlers"
	"weaponcam/internal/logger"
	"weaponcam/internal/middleware"
	"weaponcam/internal/services/websocket"
)

// Dependencies are the services the HTTP surface talks to.
type Dependencies struct {
	Sources handlers.SourceController
	Logs    handlers.LogReader
	Hub     *websocket.HubService
	Auth    *auth.Sessions
}

// SetupRoutes registers API endpoints and wraps the mux with the
// authentication middleware.
func SetupRoutes(deps Dependencies, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Live view and control
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(deps.Hub, logger))
	mux.HandleFunc("/api/sources", handlers.SourcesHandler(deps.Sources, logger))
	mux.HandleFunc("/api/sources/stop", handlers.StopSourceHandler(deps.Sources, logger))

	// Detection log
	mux.HandleFunc("/api/logs", handlers.DetectionLogsHandler(deps.Logs, logger))

	// Process logs
	mux.HandleFunc("/logs/info", handlers.ShowProcessLogHandler(cfg, "info.log"))
	mux.HandleFunc("/logs/warning", handlers.ShowProcessLogHandler(cfg, "warning.log"))
	mux.HandleFunc("/logs/error", handlers.ShowProcessLogHandler(cfg, "error.log"))

	mux.HandleFunc("/logs/info/clear", handlers.ClearProcessLogHandler(logger, "info.log"))
	mux.HandleFunc("/logs/warning/clear", handlers.ClearProcessLogHandler(logger, "warning.log"))
	mux.HandleFunc("/logs/error/clear", handlers.ClearProcessLogHandler(logger, "error.log"))

	// Auth endpoints
	mux.HandleFunc(middleware.LoginPath, handlers.LoginHandler(cfg, deps.Auth, logger))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler)

	return middleware.AuthMiddleware(deps.Auth)(mux)
}
