package sqlite

import (
	"fmt"
	"weaponcam/internal/models"
	"weaponcam/internal/repository"
)

// LogRepository implements repository.LogRepository for SQLite.
type LogRepository struct {
	db *DB
}

// NewLogRepository creates a new SQLite detection log repository.
func NewLogRepository(db *DB) *LogRepository {
	return &LogRepository{db: db}
}

// Open opens the database at path and returns its log repository.
func Open(path string) (*LogRepository, error) {
	db, err := New(path)
	if err != nil {
		return nil, err
	}
	return NewLogRepository(db), nil
}

// Insert adds a new log record to the database.
func (r *LogRepository) Insert(rec *models.LogRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(repository.InsertQuery, repository.InsertArgs(rec)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert log record: %w", err)
	}
	return result.LastInsertId()
}

// Recent retrieves log records based on filter criteria, newest first.
func (r *LogRepository) Recent(filter models.LogFilter) ([]models.LogRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := repository.RecentQuery(filter)
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log records: %w", err)
	}
	defer rows.Close()

	records, err := repository.ScanLogRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan log record: %w", err)
	}
	return records, nil
}

// Count returns the number of records matching filter.
func (r *LogRepository) Count(filter models.LogFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := repository.CountQuery(filter)
	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count log records: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (r *LogRepository) Close() error {
	return r.db.Close()
}
