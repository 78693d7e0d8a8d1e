package video

import (
	"context"
	"fmt"
	"sync"
	"time"
	"weaponcam/internal/config"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
	"weaponcam/internal/services/recorder"

	"gocv.io/x/gocv"
)

// CaptureSource reads frames from a capture device, a video file or a
// network stream through OpenCV.
type CaptureSource struct {
	spec    config.SourceSpec
	capture *gocv.VideoCapture
	mat     gocv.Mat
	size    models.FrameSize
	fps     float64
	seq     uint64
	logger  *logger.Logger
	mu      sync.Mutex
}

// OpenCapture opens the source described by spec. fallbackFPS is used when
// the backend reports an unusable frame rate.
func OpenCapture(spec config.SourceSpec, fallbackFPS float64, logger *logger.Logger) (*CaptureSource, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)
	switch spec.Kind {
	case config.SourceDevice:
		capture, err = gocv.VideoCaptureDevice(spec.Device)
	case config.SourceFile, config.SourceStream:
		capture, err = gocv.VideoCaptureFile(spec.URI)
	default:
		return nil, fmt.Errorf("source %s: kind %q is not a capture source", spec.ID, spec.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open video source %s: %w", spec.Redacted(), err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("failed to open video source %s", spec.Redacted())
	}

	reported := capture.Get(gocv.VideoCaptureFPS)
	s := &CaptureSource{
		spec:    spec,
		capture: capture,
		mat:     gocv.NewMat(),
		size: models.FrameSize{
			Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
		},
		fps:    recorder.NormalizeFPS(reported, fallbackFPS),
		logger: logger,
	}
	if s.fps != reported {
		logger.Warning("📹 Source %s reports %.2f fps, using %.2f", spec.ID, reported, s.fps)
	}
	logger.Info("📹 Opened %s source %s: %s @ %.1f fps", spec.Kind, spec.ID, s.size, s.fps)
	return s, nil
}

func (s *CaptureSource) ID() string {
	return s.spec.ID
}

func (s *CaptureSource) Size() models.FrameSize {
	return s.size
}

func (s *CaptureSource) FPS() float64 {
	return s.fps
}

// Next reads the next frame. A failed read is the end of the stream.
func (s *CaptureSource) Next(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return models.Frame{}, models.ErrSourceExhausted
	}
	s.seq++
	frame, err := fromMat(s.mat, s.seq, time.Now())
	if err != nil {
		return models.Frame{}, err
	}
	if !s.size.Valid() {
		s.size = frame.Size()
	}
	return frame, nil
}

// Restart rewinds a file source to its first frame.
func (s *CaptureSource) Restart() error {
	if !s.spec.Restartable() {
		return fmt.Errorf("source %s (%s) cannot be restarted", s.spec.ID, s.spec.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

func (s *CaptureSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mat.Close()
	return s.capture.Close()
}
