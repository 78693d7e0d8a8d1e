// Package pipeline drives one frame source through detection, annotation
// and the recording state machine, one frame at a time.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
	"weaponcam/internal/services/eventlog"
	"weaponcam/internal/services/recorder"
)

// FrameSource yields frames in capture order. Next blocks until a frame is
// available and returns models.ErrSourceExhausted at the end of the stream.
type FrameSource interface {
	ID() string
	Next(ctx context.Context) (models.Frame, error)
	Size() models.FrameSize
	FPS() float64
	Close() error
}

// Restarter is implemented by sources that can rewind to their first frame.
type Restarter interface {
	Restart() error
}

// Detector runs both models on a frame.
type Detector interface {
	Infer(ctx context.Context, frame models.Frame) (general, weapon []models.Detection)
}

// Annotator draws detections onto a copy of the frame.
type Annotator interface {
	Annotate(frame models.Frame, general, weapon []models.Detection) (models.Frame, error)
}

// Display receives every annotated frame, e.g. to stream it to viewers.
// Show must not block the caller for long.
type Display interface {
	Show(sourceID string, frame models.Frame, general, weapon []models.Detection)
}

// Options tune a single pipeline.
type Options struct {
	// RecordAnnotated writes annotated frames to clips instead of raw ones.
	RecordAnnotated bool
	// Loop restarts restartable sources when they are exhausted.
	Loop bool
}

// Stats is a snapshot of a running pipeline.
type Stats struct {
	SourceID  string    `json:"source"`
	Running   bool      `json:"running"`
	Recording bool      `json:"recording"`
	Frames    uint64    `json:"frames"`
	Episodes  uint64    `json:"episodes"`
	LastFrame time.Time `json:"last_frame"`
}

// Pipeline owns one source, its recording state machine and its open clip.
// ProcessFrame and Run must not be called concurrently; RequestStop,
// IsRecording and Stats are safe from any goroutine.
type Pipeline struct {
	source    FrameSource
	detector  Detector
	annotator Annotator
	display   Display
	machine   *recorder.Machine
	events    *eventlog.Reporter
	logger    *logger.Logger
	opts      Options

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	running   atomic.Bool
	recording atomic.Bool
	frames    atomic.Uint64
	episodes  atomic.Uint64
	lastFrame atomic.Int64
}

// New assembles a pipeline. annotator and display may be nil.
func New(source FrameSource, detector Detector, annotator Annotator, display Display,
	machine *recorder.Machine, events *eventlog.Reporter, logger *logger.Logger, opts Options) *Pipeline {
	return &Pipeline{
		source:    source,
		detector:  detector,
		annotator: annotator,
		display:   display,
		machine:   machine,
		events:    events,
		logger:    logger,
		opts:      opts,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ID returns the source identifier.
func (p *Pipeline) ID() string {
	return p.source.ID()
}

// IsRecording reports whether a clip is currently open.
func (p *Pipeline) IsRecording() bool {
	return p.recording.Load()
}

// RequestStop asks Run to return at the next frame boundary. A wait for
// the next frame is interrupted; a frame being processed is finished first.
func (p *Pipeline) RequestStop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Done is closed when Run has returned.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Stats returns counters for the pipeline.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		SourceID:  p.source.ID(),
		Running:   p.running.Load(),
		Recording: p.recording.Load(),
		Frames:    p.frames.Load(),
		Episodes:  p.episodes.Load(),
	}
	if ns := p.lastFrame.Load(); ns != 0 {
		s.LastFrame = time.Unix(0, ns)
	}
	return s
}

// ProcessFrame runs one frame through detection, annotation, display and
// the state machine.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame models.Frame) recorder.Transition {
	general, weapon := p.detector.Infer(ctx, frame)

	annotated := frame
	if p.annotator != nil {
		out, err := p.annotator.Annotate(frame, general, weapon)
		if err != nil {
			p.logger.Warning("[%s] Annotation failed on frame %d: %v", p.ID(), frame.Seq, err)
		} else {
			annotated = out
		}
	}

	if p.display != nil {
		p.display.Show(p.ID(), annotated, general, weapon)
	}

	recorded := frame
	if p.opts.RecordAnnotated {
		recorded = annotated
	}

	t := p.machine.Step(recorded, weapon)
	p.observe(frame, t)
	return t
}

// Run pulls frames until the source is exhausted, ctx is cancelled or
// RequestStop is called. An open episode is always finalized before Run
// returns, and the source is closed.
func (p *Pipeline) Run(ctx context.Context) error {
	p.running.Store(true)
	defer close(p.done)
	defer p.running.Store(false)

	// Stop interrupts a blocked Next but never a frame in progress.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	frameCtx := context.WithoutCancel(ctx)

	p.events.Info("Video source opened: %s (%s @ %.1f fps)", p.ID(), p.source.Size(), p.source.FPS())

	reason, err := p.loop(ctx, waitCtx, frameCtx)

	p.finish(reason)
	if cerr := p.source.Close(); cerr != nil {
		p.logger.Warning("[%s] Closing source failed: %v", p.ID(), cerr)
	}
	p.events.Info("Processing loop ended (%s)", reason)
	return err
}

func (p *Pipeline) loop(ctx, waitCtx, frameCtx context.Context) (string, error) {
	for {
		if p.stopping(ctx) {
			return "stopped", nil
		}

		frame, err := p.source.Next(waitCtx)
		switch {
		case err == nil:
		case errors.Is(err, models.ErrSourceExhausted):
			if p.opts.Loop {
				if r, ok := p.source.(Restarter); ok {
					p.finish("end of file, restarting")
					rerr := r.Restart()
					if rerr == nil {
						p.events.Info("Restarted %s from the first frame", p.ID())
						continue
					}
					p.events.Error("Restarting %s failed: %v", p.ID(), rerr)
				}
			}
			p.events.Info("End of video or stream: %s", p.ID())
			return "source exhausted", nil
		case waitCtx.Err() != nil:
			return "stopped", nil
		default:
			p.events.Error("Frame read failed on %s: %v", p.ID(), err)
			return "read error", err
		}

		p.ProcessFrame(frameCtx, frame)
	}
}

func (p *Pipeline) stopping(ctx context.Context) bool {
	select {
	case <-p.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// finish force-finalizes an open episode.
func (p *Pipeline) finish(reason string) {
	at := time.Now()
	if ns := p.lastFrame.Load(); ns != 0 {
		at = time.Unix(0, ns)
	}
	if ep := p.machine.Close(at, reason); ep != nil {
		p.episodes.Add(1)
	}
	p.recording.Store(false)
}

func (p *Pipeline) observe(frame models.Frame, t recorder.Transition) {
	p.frames.Add(1)
	if !frame.Timestamp.IsZero() {
		p.lastFrame.Store(frame.Timestamp.UnixNano())
	}
	if t.Finalized != nil {
		p.episodes.Add(1)
	}
	p.recording.Store(p.machine.IsRecording())
}
