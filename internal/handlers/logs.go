package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"weaponcam/internal/config"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// LogReader is the read side of the detection log.
type LogReader interface {
	Recent(filter models.LogFilter) ([]models.LogRecord, error)
}

// DetectionLogsHandler returns recent detection log records as JSON.
// Query: limit, level (INFO, DETECTION, ERROR), source.
func DetectionLogsHandler(logs LogReader, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := models.LogFilter{
			Source: q.Get("source"),
			Limit:  atoiDefault(q.Get("limit"), defaultLogLimit),
		}
		if filter.Limit > maxLogLimit {
			filter.Limit = maxLogLimit
		}
		if v := q.Get("level"); v != "" {
			level, ok := models.ParseLogLevel(v)
			if !ok {
				http.Error(w, "Unknown log level: "+v, http.StatusBadRequest)
				return
			}
			filter.Level = level
		}

		records, err := logs.Recent(filter)
		if err != nil {
			logger.Error("Error querying detection logs: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []models.LogRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ShowProcessLogHandler serves one of the process log files.
func ShowProcessLogHandler(cfg *config.Config, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := filepath.Join(cfg.LogDirectory, filename)

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.Error(w, "Log file not found: "+filename, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filePath)
	}
}

// ClearProcessLogHandler truncates one of the process log files.
func ClearProcessLogHandler(logger *logger.Logger, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		logger.CleanLogs(filename)
		w.WriteHeader(http.StatusNoContent)
	}
}

// atoiDefault converts s to a positive int or returns def.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
