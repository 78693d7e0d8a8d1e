package models

import "time"

// LogLevel is the severity column of the detection log.
type LogLevel string

const (
	LevelInfo      LogLevel = "INFO"
	LevelDetection LogLevel = "DETECTION"
	LevelError     LogLevel = "ERROR"
)

// ParseLogLevel returns the level for s, or false when s is not a known level.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch l := LogLevel(s); l {
	case LevelInfo, LevelDetection, LevelError:
		return l, true
	}
	return "", false
}

// LogRecord is one row of the append-only detection log.
type LogRecord struct {
	ID         int64     `json:"id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Level      LogLevel  `json:"level"`
	Message    string    `json:"message"`
	Source     string    `json:"source"`
	ClipPath   *string   `json:"clip_path"`
	EpisodeID  *string   `json:"episode_id,omitempty"`
	FrameCount *int      `json:"frame_count,omitempty"`
}

// NewLogRecord builds a record without clip information.
func NewLogRecord(ts time.Time, level LogLevel, source, message string) LogRecord {
	return LogRecord{
		Timestamp: ts,
		Level:     level,
		Message:   message,
		Source:    source,
	}
}

// LogFilter narrows queries against the detection log.
type LogFilter struct {
	Level  LogLevel
	Source string
	Limit  int
}
