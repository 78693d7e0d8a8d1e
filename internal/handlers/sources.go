package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"weaponcam/internal/logger"
	"weaponcam/internal/services"
	"weaponcam/internal/services/pipeline"
)

// SourceController is the part of the manager the HTTP surface drives.
type SourceController interface {
	Sources() []pipeline.Stats
	StopSource(id string) error
}

// SourcesHandler lists every source with its recording flag.
func SourcesHandler(sources SourceController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sources.Sources()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// StopSourceHandler stops the source named by the "id" query parameter.
func StopSourceHandler(sources SourceController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "id parameter is required", http.StatusBadRequest)
			return
		}

		if err := sources.StopSource(id); err != nil {
			if errors.Is(err, services.ErrUnknownSource) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			logger.Error("Failed to stop source %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("⏹️  Stop requested for source %s", id)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "stopping", "source": id})
	}
}
