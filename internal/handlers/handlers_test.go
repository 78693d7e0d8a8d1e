package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"weaponcam/internal/auth"
	"weaponcam/internal/config"
	"weaponcam/internal/logger"
	"weaponcam/internal/middleware"
	"weaponcam/internal/models"
	"weaponcam/internal/services"
	"weaponcam/internal/services/pipeline"
)

type fakeSources struct {
	stats   []pipeline.Stats
	stopped []string
}

func (f *fakeSources) Sources() []pipeline.Stats { return f.stats }

func (f *fakeSources) StopSource(id string) error {
	for _, s := range f.stats {
		if s.SourceID == id {
			f.stopped = append(f.stopped, id)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, services.ErrUnknownSource)
}

type fakeLogs struct {
	filter  models.LogFilter
	records []models.LogRecord
	err     error
}

func (f *fakeLogs) Recent(filter models.LogFilter) ([]models.LogRecord, error) {
	f.filter = filter
	return f.records, f.err
}

// ========================================
// Sources
// ========================================

func TestSourcesHandler(t *testing.T) {
	sources := &fakeSources{stats: []pipeline.Stats{
		{SourceID: "lobby.mp4", Running: true},
		{SourceID: "webcam", Running: true, Recording: true},
	}}

	rec := httptest.NewRecorder()
	SourcesHandler(sources, logger.Discard())(rec, httptest.NewRequest(http.MethodGet, "/api/sources", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var got []pipeline.Stats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(got) != 2 || !got[1].Recording {
		t.Errorf("Unexpected sources: %+v", got)
	}
}

func TestStopSourceHandler(t *testing.T) {
	sources := &fakeSources{stats: []pipeline.Stats{{SourceID: "webcam", Running: true}}}
	handler := StopSourceHandler(sources, logger.Discard())

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"wrong method", http.MethodGet, "/api/sources/stop?id=webcam", http.StatusMethodNotAllowed},
		{"missing id", http.MethodPost, "/api/sources/stop", http.StatusBadRequest},
		{"unknown source", http.MethodPost, "/api/sources/stop?id=garage", http.StatusNotFound},
		{"stops source", http.MethodPost, "/api/sources/stop?id=webcam", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(tt.method, tt.target, nil))
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if len(sources.stopped) != 1 || sources.stopped[0] != "webcam" {
		t.Errorf("Expected webcam to be stopped once, got %v", sources.stopped)
	}
}

// ========================================
// Detection logs
// ========================================

func TestDetectionLogsHandler(t *testing.T) {
	logs := &fakeLogs{records: []models.LogRecord{
		models.NewLogRecord(time.Now(), models.LevelDetection, "webcam", "REC stop"),
	}}
	handler := DetectionLogsHandler(logs, logger.Discard())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/logs?limit=5&level=DETECTION&source=webcam", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if logs.filter.Limit != 5 || logs.filter.Level != models.LevelDetection || logs.filter.Source != "webcam" {
		t.Errorf("Unexpected filter: %+v", logs.filter)
	}
	var got []models.LogRecord
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0].Message != "REC stop" {
		t.Errorf("Unexpected records: %+v", got)
	}
}

func TestDetectionLogsHandlerDefaults(t *testing.T) {
	logs := &fakeLogs{}
	rec := httptest.NewRecorder()
	DetectionLogsHandler(logs, logger.Discard())(rec, httptest.NewRequest(http.MethodGet, "/api/logs?limit=100000", nil))

	if logs.filter.Limit != maxLogLimit {
		t.Errorf("Expected limit capped at %d, got %d", maxLogLimit, logs.filter.Limit)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Expected empty JSON array, got %q", rec.Body.String())
	}
}

func TestDetectionLogsHandlerErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	DetectionLogsHandler(&fakeLogs{}, logger.Discard())(rec, httptest.NewRequest(http.MethodGet, "/api/logs?level=DEBUG", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown level, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	DetectionLogsHandler(&fakeLogs{err: errors.New("db down")}, logger.Discard())(rec, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 on store error, got %d", rec.Code)
	}
}

// ========================================
// Process logs
// ========================================

func TestShowProcessLogHandler(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, logger.InfoFile), []byte("hello\n"), 0644); err != nil {
		t.Fatalf("Failed to write log file: %v", err)
	}
	cfg := &config.Config{LogDirectory: dir}

	rec := httptest.NewRecorder()
	ShowProcessLogHandler(cfg, logger.InfoFile)(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hello") {
		t.Errorf("Expected log content, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	ShowProcessLogHandler(cfg, logger.ErrorFile)(rec, httptest.NewRequest(http.MethodGet, "/logs/error", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing file, got %d", rec.Code)
	}
}

// ========================================
// Login
// ========================================

func TestLoginHandler(t *testing.T) {
	cfg := &config.Config{Password: "secret"}
	sessions := auth.NewSessions("key", time.Hour)
	handler := LoginHandler(cfg, sessions, logger.Discard())

	post := func(password string) *httptest.ResponseRecorder {
		form := url.Values{"password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	if rec := post("wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", rec.Code)
	}

	rec := post("secret")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 for correct password, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middleware.SessionCookie {
		t.Fatalf("Expected session cookie, got %v", cookies)
	}
	if err := sessions.Validate(cookies[0].Value); err != nil {
		t.Errorf("Expected a valid session token: %v", err)
	}
}
