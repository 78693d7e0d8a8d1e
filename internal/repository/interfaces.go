package repository

import "weaponcam/internal/models"

// LogRepository is the durable store behind the detection log.
type LogRepository interface {
	// Insert appends a record and returns its id.
	Insert(rec *models.LogRecord) (int64, error)

	// Recent returns the newest records first.
	Recent(filter models.LogFilter) ([]models.LogRecord, error)
	Count(filter models.LogFilter) (int, error)

	Close() error
}
