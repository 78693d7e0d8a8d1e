// Package recorder decides, frame by frame, when a weapon clip starts and
// stops, and owns the open clip for the duration of one episode.
package recorder

import (
	"fmt"
	"path/filepath"
	"time"
	"weaponcam/internal/models"
	"weaponcam/internal/services/eventlog"
	"weaponcam/internal/services/storage"

	"github.com/google/uuid"
)

// State of the recording machine.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Recording:
		return "RECORDING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ClipOpener opens the clip for a new episode.
type ClipOpener interface {
	Open(path string, size models.FrameSize, fps float64) (storage.Clip, error)
}

// Config is fixed for the lifetime of one source.
type Config struct {
	Source         string
	ClipDir        string
	Extension      string
	FPS            float64
	CooldownFrames int
}

// Transition describes what one Step did. Started and Finalized are
// snapshots; both are set when an episode ends on the frame that opened it.
type Transition struct {
	From      State
	To        State
	Started   *models.RecordingEpisode
	Finalized *models.RecordingEpisode
}

// Changed reports whether the state changed.
func (t Transition) Changed() bool {
	return t.From != t.To || t.Started != nil || t.Finalized != nil
}

// Machine is the per-source recording state machine. It is driven from a
// single goroutine and is not safe for concurrent use.
type Machine struct {
	cfg    Config
	opener ClipOpener
	events *eventlog.Reporter
	newID  func() string

	state     State
	episode   *models.RecordingEpisode
	clip      storage.Clip
	sinceLast int // frames since the last weapon detection
}

// New creates a machine in the Idle state.
func New(cfg Config, opener ClipOpener, events *eventlog.Reporter) *Machine {
	if cfg.CooldownFrames < 0 {
		cfg.CooldownFrames = 0
	}
	if cfg.Extension == "" {
		cfg.Extension = "mp4"
	}
	return &Machine{
		cfg:    cfg,
		opener: opener,
		events: events,
		newID:  uuid.NewString,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// IsRecording reports whether an episode is open.
func (m *Machine) IsRecording() bool {
	return m.state == Recording
}

// Episode returns a snapshot of the open episode.
func (m *Machine) Episode() (models.RecordingEpisode, bool) {
	if m.episode == nil {
		return models.RecordingEpisode{}, false
	}
	return *m.episode, true
}

// CooldownFrames returns the number of trailing frames kept after the last detection.
func (m *Machine) CooldownFrames() int {
	return m.cfg.CooldownFrames
}

// Step feeds one frame and that frame's weapon detections to the machine.
// frame is what gets written to the clip.
func (m *Machine) Step(frame models.Frame, weapons []models.Detection) Transition {
	if m.state == Idle {
		if len(weapons) == 0 {
			return Transition{From: Idle, To: Idle}
		}
		return m.start(frame, weapons)
	}

	if len(weapons) > 0 {
		m.sinceLast = 0
		return m.write(frame)
	}

	if m.sinceLast >= m.cfg.CooldownFrames {
		ended := m.finalize(frame.Timestamp, "")
		return Transition{From: Recording, To: Idle, Finalized: ended}
	}
	m.sinceLast++
	return m.write(frame)
}

// Close force-finalizes an open episode, e.g. on stop or end of stream.
// It returns nil when nothing was recording.
func (m *Machine) Close(at time.Time, reason string) *models.RecordingEpisode {
	if m.state != Recording {
		return nil
	}
	return m.finalize(at, reason)
}

func (m *Machine) start(frame models.Frame, weapons []models.Detection) Transition {
	trigger, _ := models.HighestConfidence(weapons)
	path := ClipPath(m.cfg.ClipDir, m.cfg.Source, frame.Timestamp, trigger.Label, m.cfg.Extension)

	clip, err := m.opener.Open(path, frame.Size(), m.cfg.FPS)
	if err != nil {
		m.events.Error("REC start failed for %s detection on frame %d: %v", trigger.Label, frame.Seq, err)
		return Transition{From: Idle, To: Idle}
	}

	m.state = Recording
	m.clip = clip
	m.sinceLast = 0
	m.episode = &models.RecordingEpisode{
		ID:           m.newID(),
		Source:       m.cfg.Source,
		StartTime:    frame.Timestamp,
		TriggerLabel: trigger.Label,
	}
	started := *m.episode

	m.events.Info("REC start: %s detected (%.2f) on frame %d, recording %s",
		trigger.Label, trigger.Confidence, frame.Seq, filepath.Base(path))

	t := m.write(frame)
	t.From = Idle
	t.Started = &started
	return t
}

// write appends frame to the open clip. A write failure ends the episode
// with whatever was written so far.
func (m *Machine) write(frame models.Frame) Transition {
	if err := m.clip.Append(frame); err != nil {
		m.events.Error("REC write failed on frame %d: %v", frame.Seq, err)
		ended := m.finalize(frame.Timestamp, "write error")
		return Transition{From: Recording, To: Idle, Finalized: ended}
	}
	return Transition{From: Recording, To: Recording}
}

// finalize closes the clip, emits the single DETECTION record for the
// episode and returns the machine to Idle.
func (m *Machine) finalize(at time.Time, cause string) *models.RecordingEpisode {
	count, err := m.clip.Finalize()
	if err != nil {
		m.events.Error("REC finalize failed for %s: %v", m.clip.Path(), err)
	}

	ep := m.episode
	ep.EndTime = &at
	ep.ClipPath = m.clip.Path()
	ep.FrameCount = count

	msg := fmt.Sprintf("REC stop: %s detected, %d frames saved to %s",
		ep.TriggerLabel, count, filepath.Base(ep.ClipPath))
	if cause != "" {
		msg += " (" + cause + ")"
	}
	clipPath, episodeID, frames := ep.ClipPath, ep.ID, ep.FrameCount
	m.events.Emit(models.LogRecord{
		Timestamp:  at,
		Level:      models.LevelDetection,
		Message:    msg,
		ClipPath:   &clipPath,
		EpisodeID:  &episodeID,
		FrameCount: &frames,
	})

	ended := *ep
	m.state = Idle
	m.episode = nil
	m.clip = nil
	m.sinceLast = 0
	return &ended
}
