package models

import (
	"errors"
	"fmt"
)

// ErrSourceExhausted is returned by a frame source when the stream has ended.
// It is a normal termination, not a failure.
var ErrSourceExhausted = errors.New("frame source exhausted")

// InferenceError reports that one model failed on one frame.
type InferenceError struct {
	Model ModelSource
	Seq   uint64
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s model failed on frame %d: %v", e.Model, e.Seq, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// StorageError reports a clip open, append or finalize failure.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("clip %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// LogSinkError reports that a log record could not be handed to the sink.
type LogSinkError struct {
	Err error
}

func (e *LogSinkError) Error() string {
	return fmt.Sprintf("event log: %v", e.Err)
}

func (e *LogSinkError) Unwrap() error { return e.Err }
