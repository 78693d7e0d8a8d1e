package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
	"weaponcam/internal/services/eventlog"
	"weaponcam/internal/services/recorder"
	"weaponcam/internal/services/storage"
)

const width, height = 4, 2

func makeFrame(seq uint64, fill byte) models.Frame {
	data := make([]byte, width*height*models.Channels)
	for i := range data {
		data[i] = fill
	}
	return models.Frame{
		Seq:       seq,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, int(seq)*int(time.Millisecond), time.UTC),
		Width:     width,
		Height:    height,
		Data:      data,
	}
}

// sliceSource yields n frames, then either blocks until ctx is done or
// reports exhaustion.
type sliceSource struct {
	n        uint64
	next     uint64
	block    bool
	closed   bool
	restarts int
	maxLoops int
	mu       sync.Mutex
}

func (s *sliceSource) ID() string             { return "lobby.mp4" }
func (s *sliceSource) Size() models.FrameSize { return models.FrameSize{Width: width, Height: height} }
func (s *sliceSource) FPS() float64           { return 20 }
func (s *sliceSource) Close() error           { s.closed = true; return nil }

func (s *sliceSource) Next(ctx context.Context) (models.Frame, error) {
	s.mu.Lock()
	if s.next < s.n {
		s.next++
		seq := s.next
		s.mu.Unlock()
		return makeFrame(seq, 0), nil
	}
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return models.Frame{}, ctx.Err()
	}
	return models.Frame{}, models.ErrSourceExhausted
}

// loopSource adds Restart to sliceSource.
type loopSource struct {
	*sliceSource
}

func (s loopSource) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restarts >= s.maxLoops {
		return errors.New("no more loops")
	}
	s.restarts++
	s.next = 0
	return nil
}

// hitDetector reports a weapon on the listed sequence numbers.
type hitDetector struct {
	hits map[uint64]bool
}

func (d hitDetector) Infer(ctx context.Context, frame models.Frame) ([]models.Detection, []models.Detection) {
	if d.hits[frame.Seq] {
		return nil, []models.Detection{{Label: "gun", Confidence: 0.9, Source: models.SourceWeapon}}
	}
	return nil, nil
}

func hits(seqs ...uint64) hitDetector {
	d := hitDetector{hits: make(map[uint64]bool)}
	for _, s := range seqs {
		d.hits[s] = true
	}
	return d
}

// recordingEncoder keeps the first byte of every written frame.
type recordingEncoder struct {
	mu    *sync.Mutex
	bytes *[]byte
}

func (e recordingEncoder) Write(frame models.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	*e.bytes = append(*e.bytes, frame.Data[0])
	return nil
}

func (e recordingEncoder) Close() error { return nil }

type harness struct {
	log     *eventlog.Memory
	written []byte
	mu      sync.Mutex
}

func (h *harness) build(t *testing.T, source FrameSource, detector Detector, annotator Annotator, cooldown int, opts Options) *Pipeline {
	t.Helper()
	h.log = eventlog.NewMemory()
	events := eventlog.NewReporter(h.log, source.ID(), logger.Discard())

	clips := storage.NewClipWriter(storage.EncoderFactoryFunc(func(path string, size models.FrameSize, fps float64) (storage.Encoder, error) {
		return recordingEncoder{mu: &h.mu, bytes: &h.written}, nil
	}), logger.Discard())

	machine := recorder.New(recorder.Config{
		Source:         source.ID(),
		ClipDir:        filepath.Join(t.TempDir(), "clips"),
		Extension:      "mp4",
		FPS:            source.FPS(),
		CooldownFrames: cooldown,
	}, clips, events)

	return New(source, detector, annotator, nil, machine, events, logger.Discard(), opts)
}

func (h *harness) detections() []models.LogRecord {
	return h.log.ByLevel(models.LevelDetection)
}

// ========================================
// Termination
// ========================================

func TestExhaustionFinalizesOpenEpisode(t *testing.T) {
	h := &harness{}
	source := &sliceSource{n: 5}
	p := h.build(t, source, hits(3, 4, 5), nil, 10, Options{})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	dets := h.detections()
	if len(dets) != 1 {
		t.Fatalf("Expected 1 DETECTION record, got %d", len(dets))
	}
	if dets[0].FrameCount == nil || *dets[0].FrameCount != 3 {
		t.Errorf("Expected 3 frames, got %v", dets[0].FrameCount)
	}
	if !strings.Contains(dets[0].Message, "source exhausted") {
		t.Errorf("Expected the stop cause in the message, got %q", dets[0].Message)
	}
	if !source.closed {
		t.Error("Expected source to be closed")
	}

	stats := p.Stats()
	if stats.Frames != 5 || stats.Episodes != 1 || stats.Recording || stats.Running {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	select {
	case <-p.Done():
	default:
		t.Error("Expected Done to be closed")
	}
}

func TestRequestStopInterruptsWaitingSource(t *testing.T) {
	h := &harness{}
	source := &sliceSource{n: 3, block: true}
	p := h.build(t, source, hits(2), nil, 10, Options{})

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().Frames < 3 {
		if time.Now().After(deadline) {
			t.Fatal("Frames were never processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !p.IsRecording() {
		t.Fatal("Expected pipeline to be recording before stop")
	}

	p.RequestStop()
	p.RequestStop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after RequestStop")
	}

	if p.IsRecording() {
		t.Error("Expected recording to be finalized")
	}
	if n := len(h.detections()); n != 1 {
		t.Errorf("Expected 1 DETECTION record, got %d", n)
	}
}

func TestContextCancelStops(t *testing.T) {
	h := &harness{}
	p := h.build(t, &sliceSource{n: 1, block: true}, hits(1), nil, 10, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().Frames < 1 {
		if time.Now().After(deadline) {
			t.Fatal("Frame was never processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := len(h.detections()); n != 1 {
		t.Errorf("Expected open episode finalized on cancel, got %d records", n)
	}
}

// ========================================
// Loop playback
// ========================================

func TestLoopRestartsFileSource(t *testing.T) {
	h := &harness{}
	source := loopSource{&sliceSource{n: 3, maxLoops: 2}}
	p := h.build(t, source, hits(3), nil, 10, Options{Loop: true})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if source.restarts != 2 {
		t.Errorf("Expected 2 restarts, got %d", source.restarts)
	}
	if got := p.Stats().Frames; got != 9 {
		t.Errorf("Expected 9 frames over 3 passes, got %d", got)
	}
	// One episode per pass, each closed at the end of the file.
	if n := len(h.detections()); n != 3 {
		t.Errorf("Expected 3 DETECTION records, got %d", n)
	}
	if n := len(h.log.ByLevel(models.LevelError)); n != 1 {
		t.Errorf("Expected 1 ERROR record for the refused restart, got %d", n)
	}
}

func TestLoopIgnoredForUnrestartableSource(t *testing.T) {
	h := &harness{}
	p := h.build(t, &sliceSource{n: 2}, hits(), nil, 1, Options{Loop: true})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := p.Stats().Frames; got != 2 {
		t.Errorf("Expected 2 frames, got %d", got)
	}
}

// ========================================
// Annotation
// ========================================

type markingAnnotator struct {
	fail bool
}

func (a markingAnnotator) Annotate(frame models.Frame, general, weapon []models.Detection) (models.Frame, error) {
	if a.fail {
		return frame, errors.New("draw failed")
	}
	data := make([]byte, len(frame.Data))
	for i := range data {
		data[i] = 0xAA
	}
	return frame.WithData(data), nil
}

func TestRecordAnnotatedFrames(t *testing.T) {
	tests := []struct {
		name      string
		annotator Annotator
		annotated bool
		want      byte
	}{
		{"annotated", markingAnnotator{}, true, 0xAA},
		{"raw", markingAnnotator{}, false, 0x00},
		{"annotation fails", markingAnnotator{fail: true}, true, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &harness{}
			p := h.build(t, &sliceSource{n: 2}, hits(1, 2), tt.annotator, 0, Options{RecordAnnotated: tt.annotated})
			if err := p.Run(context.Background()); err != nil {
				t.Fatalf("Run returned error: %v", err)
			}

			h.mu.Lock()
			defer h.mu.Unlock()
			if len(h.written) != 2 {
				t.Fatalf("Expected 2 frames written, got %d", len(h.written))
			}
			for _, b := range h.written {
				if b != tt.want {
					t.Errorf("Expected frame byte %#x, got %#x", tt.want, b)
				}
			}
		})
	}
}

func TestAnnotatorDoesNotMutateInput(t *testing.T) {
	h := &harness{}
	p := h.build(t, &sliceSource{}, hits(1), markingAnnotator{}, 0, Options{RecordAnnotated: true})

	frame := makeFrame(1, 0x01)
	p.ProcessFrame(context.Background(), frame)

	if frame.Data[0] != 0x01 {
		t.Error("Expected the source frame to be left untouched")
	}
}

// ========================================
// Display
// ========================================

type countingDisplay struct {
	shown int
}

func (d *countingDisplay) Show(sourceID string, frame models.Frame, general, weapon []models.Detection) {
	d.shown++
}

func TestDisplaySeesEveryFrame(t *testing.T) {
	h := &harness{}
	p := h.build(t, &sliceSource{n: 4}, hits(2), nil, 1, Options{})
	display := &countingDisplay{}
	p.display = display

	p.Run(context.Background())

	if display.shown != 4 {
		t.Errorf("Expected 4 frames shown, got %d", display.shown)
	}
}
