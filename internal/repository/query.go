package repository

import (
	"database/sql"
	"time"
	"weaponcam/internal/models"
)

// Table is the name of the detection log table in every backend.
const Table = "detection_logs"

const logColumns = "id, timestamp, log_level, message, video_source, clip_path, episode_id, frame_count"

// InsertQuery inserts one record; use it with InsertArgs.
const InsertQuery = `INSERT INTO detection_logs (timestamp, log_level, message, video_source, clip_path, episode_id, frame_count)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

// InsertArgs returns the values for InsertQuery. Absent clip data is NULL.
func InsertArgs(rec *models.LogRecord) []interface{} {
	var clipPath, episodeID sql.NullString
	var frameCount sql.NullInt64
	if rec.ClipPath != nil {
		clipPath = sql.NullString{String: *rec.ClipPath, Valid: true}
	}
	if rec.EpisodeID != nil {
		episodeID = sql.NullString{String: *rec.EpisodeID, Valid: true}
	}
	if rec.FrameCount != nil {
		frameCount = sql.NullInt64{Int64: int64(*rec.FrameCount), Valid: true}
	}
	return []interface{}{rec.Timestamp, string(rec.Level), rec.Message, rec.Source, clipPath, episodeID, frameCount}
}

// where builds the WHERE clause shared by the select and count queries.
func where(filter models.LogFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}

	if filter.Level != "" {
		query += " AND log_level = ?"
		args = append(args, string(filter.Level))
	}
	if filter.Source != "" {
		query += " AND video_source = ?"
		args = append(args, filter.Source)
	}
	return query, args
}

// RecentQuery selects records matching filter, newest first.
func RecentQuery(filter models.LogFilter) (string, []interface{}) {
	clause, args := where(filter)
	query := "SELECT " + logColumns + " FROM " + Table + clause + " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return query, args
}

// CountQuery counts records matching filter.
func CountQuery(filter models.LogFilter) (string, []interface{}) {
	clause, args := where(filter)
	return "SELECT COUNT(*) FROM " + Table + clause, args
}

// ScanLogRecords reads every row produced by RecentQuery.
func ScanLogRecords(rows *sql.Rows) ([]models.LogRecord, error) {
	var records []models.LogRecord
	for rows.Next() {
		var (
			rec        models.LogRecord
			level      string
			ts         time.Time
			clipPath   sql.NullString
			episodeID  sql.NullString
			frameCount sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &ts, &level, &rec.Message, &rec.Source, &clipPath, &episodeID, &frameCount); err != nil {
			return nil, err
		}
		rec.Timestamp = ts
		rec.Level = models.LogLevel(level)
		if clipPath.Valid {
			rec.ClipPath = &clipPath.String
		}
		if episodeID.Valid {
			rec.EpisodeID = &episodeID.String
		}
		if frameCount.Valid {
			n := int(frameCount.Int64)
			rec.FrameCount = &n
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
