package mysql

import (
	"database/sql"
	"fmt"
	"sync"
	"weaponcam/internal/models"
	"weaponcam/internal/repository"
)

// LogRepository implements repository.LogRepository for MySQL.
type LogRepository struct {
	conn *sql.DB
	mu   sync.Mutex
}

// NewLogRepository wraps an already migrated connection.
func NewLogRepository(conn *sql.DB) *LogRepository {
	return &LogRepository{conn: conn}
}

// Insert adds a new log record. Writes are serialized.
func (r *LogRepository) Insert(rec *models.LogRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.conn.Exec(repository.InsertQuery, repository.InsertArgs(rec)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert log record: %w", err)
	}
	return result.LastInsertId()
}

// Recent retrieves log records based on filter criteria, newest first.
func (r *LogRepository) Recent(filter models.LogFilter) ([]models.LogRecord, error) {
	query, args := repository.RecentQuery(filter)
	rows, err := r.conn.Query(query, args...)
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
	query, args := repository.CountQuery(filter)
	var count int
	if err := r.conn.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count log records: %w", err)
	}
	return count, nil
}

func (r *LogRepository) Close() error {
	return r.conn.Close()
}
