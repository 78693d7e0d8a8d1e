package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"weaponcam/internal/config"
	"weaponcam/internal/logger"
	"weaponcam/internal/services/detection"
	"weaponcam/internal/services/eventlog"
	"weaponcam/internal/services/pipeline"
	"weaponcam/internal/services/recorder"
)

var (
	ErrUnknownSource  = errors.New("unknown source")
	ErrSourceRunning  = errors.New("source already running")
	ErrNoSourceOpened = errors.New("no video source could be opened")
)

// SourceOpener opens the frame source described by spec.
type SourceOpener func(spec config.SourceSpec) (pipeline.FrameSource, error)

// Dependencies are shared by every pipeline of a Manager.
type Dependencies struct {
	OpenSource SourceOpener
	General    detection.Predictor
	Weapon     detection.Predictor
	Annotator  pipeline.Annotator
	Display    pipeline.Display
	Clips      recorder.ClipOpener
	Events     eventlog.EventLog
}

// Manager runs one pipeline per configured source. Sources run side by
// side and never share a recording.
type Manager struct {
	deps   Dependencies
	config *config.Config
	logger *logger.Logger

	mu        sync.RWMutex
	pipelines map[string]*pipeline.Pipeline
	starting  map[string]bool
	wg        sync.WaitGroup
}

func NewManager(deps Dependencies, config *config.Config, logger *logger.Logger) *Manager {
	return &Manager{
		deps:      deps,
		config:    config,
		logger:    logger,
		pipelines: make(map[string]*pipeline.Pipeline),
		starting:  make(map[string]bool),
	}
}

// StartAll starts every configured source. Sources that fail to open are
// logged and skipped; an error is returned only when none could start.
func (m *Manager) StartAll(ctx context.Context) error {
	started := 0
	for _, spec := range m.config.Sources {
		if err := m.StartSource(ctx, spec); err != nil {
			m.logger.Error("Could not start source %s: %v", spec.ID, err)
			continue
		}
		started++
	}
	if started == 0 {
		return ErrNoSourceOpened
	}
	m.logger.Info("🎬 Manager started %d of %d source(s)", started, len(m.config.Sources))
	return nil
}

// StartSource opens spec and runs its pipeline in a new goroutine. The id
// is reserved before the source is opened, so concurrent calls for one id
// start at most one pipeline.
func (m *Manager) StartSource(ctx context.Context, spec config.SourceSpec) error {
	m.mu.Lock()
	if p, ok := m.pipelines[spec.ID]; (ok && !finished(p)) || m.starting[spec.ID] {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", spec.ID, ErrSourceRunning)
	}
	m.starting[spec.ID] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.starting, spec.ID)
		m.mu.Unlock()
	}()

	events := eventlog.NewReporter(m.deps.Events, spec.ID, m.logger)

	source, err := m.deps.OpenSource(spec)
	if err != nil {
		events.Error("Error opening video source %s: %v", spec.Redacted(), err)
		return err
	}

	p := m.build(source, events)

	m.mu.Lock()
	m.pipelines[spec.ID] = p
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		if err := p.Run(ctx); err != nil {
			m.logger.Error("Pipeline %s ended with error: %v", spec.ID, err)
		}
	}()
	return nil
}

func finished(p *pipeline.Pipeline) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

func (m *Manager) build(source pipeline.FrameSource, events *eventlog.Reporter) *pipeline.Pipeline {
	detector := detection.NewDualDetector(m.deps.General, m.deps.Weapon, detection.Config{
		GeneralThreshold: m.config.GeneralModel.Confidence,
		WeaponThreshold:  m.config.WeaponModel.Confidence,
		WeaponClasses:    m.config.WeaponClasses,
	}, events)

	cooldown := m.config.CooldownFrames
	if cooldown < 0 {
		cooldown = recorder.CooldownFrames(m.config.RecordCooldown, source.FPS())
	}
	machine := recorder.New(recorder.Config{
		Source:         source.ID(),
		ClipDir:        m.config.ClipDirectory,
		Extension:      m.config.ClipExtension,
		FPS:            source.FPS(),
		CooldownFrames: cooldown,
	}, m.deps.Clips, events)

	m.logger.Info("⏱️  Source %s: cooldown %d frame(s) at %.1f fps", source.ID(), cooldown, source.FPS())

	return pipeline.New(source, detector, m.deps.Annotator, m.deps.Display, machine, events, m.logger, pipeline.Options{
		RecordAnnotated: m.config.RecordAnnotated,
		Loop:            m.config.SourceLoop,
	})
}

// StopSource asks one pipeline to stop at its next frame boundary.
func (m *Manager) StopSource(id string) error {
	m.mu.RLock()
	p, ok := m.pipelines[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownSource)
	}

	eventlog.NewReporter(m.deps.Events, id, m.logger).Info("Stop requested by user")
	p.RequestStop()
	return nil
}

// IsRecording reports whether the source currently has an open clip.
func (m *Manager) IsRecording(id string) (bool, error) {
	m.mu.RLock()
	p, ok := m.pipelines[id]
	m.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%s: %w", id, ErrUnknownSource)
	}
	return p.IsRecording(), nil
}

// Sources returns a snapshot of every pipeline, sorted by id.
func (m *Manager) Sources() []pipeline.Stats {
	m.mu.RLock()
	stats := make([]pipeline.Stats, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		stats = append(stats, p.Stats())
	}
	m.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].SourceID < stats[j].SourceID })
	return stats
}

// Wait blocks until every pipeline has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stop requests every pipeline to stop and waits for open clips to be
// finalized.
func (m *Manager) Stop() {
	m.mu.RLock()
	for _, p := range m.pipelines {
		p.RequestStop()
	}
	m.mu.RUnlock()

	m.wg.Wait()
	m.logger.Info("🛑 All pipelines stopped")
}
