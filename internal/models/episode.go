package models

import "time"

// RecordingEpisode is one contiguous weapon event and the clip captured for it.
// ClipPath stays empty and EndTime nil until the episode is finalized.
type RecordingEpisode struct {
	ID           string     `json:"episode_id"`
	Source       string     `json:"source"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	TriggerLabel string     `json:"trigger_label"`
	ClipPath     string     `json:"clip_path,omitempty"`
	FrameCount   int        `json:"frame_count"`
}

// Finalized reports whether the episode has been closed.
func (e RecordingEpisode) Finalized() bool {
	return e.EndTime != nil
}
