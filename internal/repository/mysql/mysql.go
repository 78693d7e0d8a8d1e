// Package mysql stores the detection log in a MySQL database.
package mysql

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

const schema = `
	CREATE TABLE IF NOT EXISTS detection_logs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		timestamp DATETIME(3) NOT NULL,
		log_level VARCHAR(16) NOT NULL,
		message TEXT NOT NULL,
		video_source VARCHAR(255) NOT NULL,
		clip_path VARCHAR(1024) NULL,
		episode_id CHAR(36) NULL,
		frame_count INT NULL,
		INDEX idx_detection_logs_timestamp (timestamp),
		INDEX idx_detection_logs_level (log_level),
		INDEX idx_detection_logs_source (video_source)
	)`

// Open connects to the database named in dsn and creates the table.
// The "mysql://" prefix is accepted and stripped.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(strings.TrimPrefix(dsn, "mysql://"))
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.Local
	}

	conn, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate creates the detection log table if it doesn't exist.
func Migrate(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
