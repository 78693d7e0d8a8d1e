// Package eventlog delivers LogRecords from the frame loop to the durable
// detection log without letting the store stall frame processing.
package eventlog

import (
	"errors"
	"sync"
	"sync/atomic"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
)

var (
	ErrQueueFull = errors.New("log queue full")
	ErrClosed    = errors.New("log closed")
)

// EventLog is the append contract the pipeline writes to.
// Append must not block on storage I/O.
type EventLog interface {
	Append(record models.LogRecord) error
}

// Sink persists records. Implementations serialize their own writes.
type Sink interface {
	Insert(record *models.LogRecord) (int64, error)
}

// Async queues records in memory and persists them from a single writer
// goroutine. Append never waits for the sink.
type Async struct {
	sink      Sink
	queue     chan models.LogRecord
	logger    *logger.Logger
	observers []func(models.LogRecord)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewAsync starts the writer goroutine. Call Close to drain and stop it.
func NewAsync(sink Sink, queueSize int, logger *logger.Logger) *Async {
	if queueSize <= 0 {
		queueSize = 256
	}
	a := &Async{
		sink:   sink,
		queue:  make(chan models.LogRecord, queueSize),
		logger: logger,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Subscribe registers fn to be called after each record is persisted.
// Must be called before records are appended.
func (a *Async) Subscribe(fn func(models.LogRecord)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// Append enqueues the record. It fails immediately when the queue is full
// or the log has been closed.
func (a *Async) Append(record models.LogRecord) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return &models.LogSinkError{Err: ErrClosed}
	}

	select {
	case a.queue <- record:
		return nil
	default:
		a.dropped.Add(1)
		return &models.LogSinkError{Err: ErrQueueFull}
	}
}

// Close stops accepting records, writes everything already queued and
// waits for the writer to finish.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
	return nil
}

// Stats returns how many records were persisted and how many were lost.
func (a *Async) Stats() (written, dropped uint64) {
	return a.written.Load(), a.dropped.Load()
}

func (a *Async) run() {
	defer a.wg.Done()
	for record := range a.queue {
		a.write(record)
	}
}

// write persists one record, retrying once before giving up on it.
func (a *Async) write(record models.LogRecord) {
	id, err := a.sink.Insert(&record)
	if err != nil {
		id, err = a.sink.Insert(&record)
	}
	if err != nil {
		a.dropped.Add(1)
		a.logger.Error("Dropping %s log record %q: %v", record.Level, record.Message, err)
		return
	}
	record.ID = id
	a.written.Add(1)

	a.mu.RLock()
	observers := a.observers
	a.mu.RUnlock()
	for _, fn := range observers {
		fn(record)
	}
}

// Memory is an in-process Sink and EventLog that keeps every record.
// Append is synchronous. It backs tests and runs without a database.
type Memory struct {
	mu      sync.Mutex
	records []models.LogRecord
	fail    error
}

// NewMemory returns an empty in-memory log.
func NewMemory() *Memory {
	return &Memory{}
}

// Insert stores a copy of the record and assigns it a sequential id.
func (m *Memory) Insert(record *models.LogRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	rec := *record
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return rec.ID, nil
}

// Append implements EventLog.
func (m *Memory) Append(record models.LogRecord) error {
	_, err := m.Insert(&record)
	return err
}

// FailWith makes every later write return err; nil restores normal behavior.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Records returns a snapshot of the stored records.
func (m *Memory) Records() []models.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.LogRecord, len(m.records))
	copy(out, m.records)
	return out
}

// ByLevel returns the stored records with the given level.
func (m *Memory) ByLevel(level models.LogLevel) []models.LogRecord {
	var out []models.LogRecord
	for _, r := range m.Records() {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}
