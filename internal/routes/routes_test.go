package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"weaponcam/internal/auth"
	"weaponcam/internal/config"
	"weaponcam/internal/logger"
	"weaponcam/internal/middleware"
	"weaponcam/internal/models"
	"weaponcam/internal/services/pipeline"
	"weaponcam/internal/services/websocket"
)

type stubSources struct{}

func (stubSources) Sources() []pipeline.Stats  { return []pipeline.Stats{{SourceID: "webcam"}} }
func (stubSources) StopSource(id string) error { return nil }

type stubLogs struct{}

func (stubLogs) Recent(models.LogFilter) ([]models.LogRecord, error) { return nil, nil }

func TestSetupRoutes(t *testing.T) {
	cfg := &config.Config{LogDirectory: t.TempDir(), Password: "secret"}
	sessions := auth.NewSessions("key", time.Hour)
	token, _, err := sessions.Issue()
	if err != nil {
		t.Fatalf("Failed to issue session: %v", err)
	}
	deps := Dependencies{
		Sources: stubSources{},
		Logs:    stubLogs{},
		Hub:     websocket.NewHubService(nil, 1, logger.Discard()),
		Auth:    sessions,
	}
	router := SetupRoutes(deps, cfg, logger.Discard())

	tests := []struct {
		name    string
		method  string
		path    string
		session bool
		want    int
	}{
		{"sources needs session", http.MethodGet, "/api/sources", false, http.StatusUnauthorized},
		{"sources", http.MethodGet, "/api/sources", true, http.StatusOK},
		{"stop", http.MethodPost, "/api/sources/stop?id=webcam", true, http.StatusAccepted},
		{"logs", http.MethodGet, "/api/logs", true, http.StatusOK},
		{"missing process log", http.MethodGet, "/logs/info", true, http.StatusNotFound},
		{"logout", http.MethodPost, "/auth/logout", true, http.StatusNoContent},
		{"login is public", http.MethodGet, "/auth/login", false, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.session {
				req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, rec.Code)
			}
		})
	}
}
