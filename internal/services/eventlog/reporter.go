package eventlog

import (
	"fmt"
	"time"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
)

// Reporter is the frame loop's handle on the event log for one source.
// Emit is best-effort: a record the log refuses is reported once as an
// ERROR record, and if that fails too it only reaches the process logger.
type Reporter struct {
	log    EventLog
	source string
	logger *logger.Logger
	now    func() time.Time
}

// NewReporter binds an EventLog to a source identifier. log may be nil,
// in which case records only go to the process logger.
func NewReporter(log EventLog, source string, logger *logger.Logger) *Reporter {
	return &Reporter{
		log:    log,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Source returns the identifier stamped on records.
func (r *Reporter) Source() string {
	return r.source
}

// Emit appends the record, filling in source and timestamp when unset.
// It reports whether the record itself was accepted.
func (r *Reporter) Emit(record models.LogRecord) bool {
	if record.Source == "" {
		record.Source = r.source
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = r.now()
	}
	r.mirror(record)

	if r.log == nil {
		return false
	}

	err := r.log.Append(record)
	if err == nil {
		return true
	}

	fallback := models.NewLogRecord(r.now(), models.LevelError, r.source,
		fmt.Sprintf("failed to log %s record %q: %v", record.Level, record.Message, err))
	if err := r.log.Append(fallback); err != nil {
		r.logger.Error("📉 [%s] Dropping log record %q: %v", r.source, record.Message, err)
	}
	return false
}

// Info emits an INFO record.
func (r *Reporter) Info(format string, v ...interface{}) bool {
	return r.Emit(models.NewLogRecord(r.now(), models.LevelInfo, r.source, fmt.Sprintf(format, v...)))
}

// Error emits an ERROR record.
func (r *Reporter) Error(format string, v ...interface{}) bool {
	return r.Emit(models.NewLogRecord(r.now(), models.LevelError, r.source, fmt.Sprintf(format, v...)))
}

func (r *Reporter) mirror(record models.LogRecord) {
	switch record.Level {
	case models.LevelError:
		r.logger.Error("🔴 [%s] %s", record.Source, record.Message)
	case models.LevelDetection:
		r.logger.Warning("⚠️  [%s] %s", record.Source, record.Message)
	default:
		r.logger.Info("[%s] %s", record.Source, record.Message)
	}
}
