package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
)

// ErrFinalized is wrapped by Append on a clip that has already been finalized.
var ErrFinalized = errors.New("clip already finalized")

// Encoder writes frames into one open container file.
type Encoder interface {
	Write(frame models.Frame) error
	Close() error
}

// EncoderFactory creates the container file at path.
type EncoderFactory interface {
	NewEncoder(path string, size models.FrameSize, fps float64) (Encoder, error)
}

// EncoderFactoryFunc adapts a function to EncoderFactory.
type EncoderFactoryFunc func(path string, size models.FrameSize, fps float64) (Encoder, error)

func (f EncoderFactoryFunc) NewEncoder(path string, size models.FrameSize, fps float64) (Encoder, error) {
	return f(path, size, fps)
}

// Clip is an open output video owned by one recording episode.
type Clip interface {
	// Append writes one frame.
	Append(frame models.Frame) error
	// Finalize flushes and closes the file and returns the number of frames
	// written. Calling it again returns the same count and no error.
	Finalize() (int, error)
	// Path is the file being written.
	Path() string
}

// ClipWriter opens clips in a directory tree on local storage.
type ClipWriter struct {
	factory EncoderFactory
	logger  *logger.Logger
}

// NewClipWriter creates a ClipWriter that encodes with factory.
func NewClipWriter(factory EncoderFactory, logger *logger.Logger) *ClipWriter {
	return &ClipWriter{
		factory: factory,
		logger:  logger,
	}
}

// Open creates the parent directory and the clip file.
// Every failure is returned as a *models.StorageError.
func (w *ClipWriter) Open(path string, size models.FrameSize, fps float64) (Clip, error) {
	if !size.Valid() {
		return nil, &models.StorageError{Op: "open", Path: path, Err: fmt.Errorf("invalid frame size %s", size)}
	}
	if fps <= 0 {
		return nil, &models.StorageError{Op: "open", Path: path, Err: fmt.Errorf("invalid frame rate %.2f", fps)}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &models.StorageError{Op: "open", Path: path, Err: err}
	}

	enc, err := w.factory.NewEncoder(path, size, fps)
	if err != nil {
		return nil, &models.StorageError{Op: "open", Path: path, Err: err}
	}

	w.logger.Info("🎬 Clip opened: %s (%s @ %.1f fps)", path, size, fps)
	return &clip{
		path:    path,
		size:    size,
		encoder: enc,
		logger:  w.logger,
	}, nil
}

// clip is used from a single pipeline goroutine and is not safe for
// concurrent use.
type clip struct {
	path    string
	size    models.FrameSize
	encoder Encoder
	logger  *logger.Logger

	frames    int
	finalized bool
}

func (c *clip) Path() string {
	return c.path
}

func (c *clip) Append(frame models.Frame) error {
	if c.finalized {
		return &models.StorageError{Op: "append", Path: c.path, Err: ErrFinalized}
	}
	if frame.Size() != c.size {
		return &models.StorageError{Op: "append", Path: c.path,
			Err: fmt.Errorf("frame %d is %s, clip is %s", frame.Seq, frame.Size(), c.size)}
	}
	if err := c.encoder.Write(frame); err != nil {
		return &models.StorageError{Op: "append", Path: c.path, Err: err}
	}
	c.frames++
	return nil
}

func (c *clip) Finalize() (int, error) {
	if c.finalized {
		return c.frames, nil
	}
	c.finalized = true

	if err := c.encoder.Close(); err != nil {
		return c.frames, &models.StorageError{Op: "finalize", Path: c.path, Err: err}
	}
	c.logger.Info("💾 Clip finalized: %s (%d frames)", c.path, c.frames)
	return c.frames, nil
}
