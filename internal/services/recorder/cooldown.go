package recorder

import (
	"math"
	"time"
)

const (
	// DefaultFPS replaces frame rates a source reports that cannot be trusted.
	DefaultFPS = 20.0
	// MaxFPS is the highest frame rate accepted from a source.
	MaxFPS = 120.0
)

// NormalizeFPS returns fps when it is usable, otherwise fallback, otherwise DefaultFPS.
// Capture backends report 0 or absurd values for some webcams and streams.
func NormalizeFPS(fps, fallback float64) float64 {
	if usableFPS(fps) {
		return fps
	}
	if usableFPS(fallback) {
		return fallback
	}
	return DefaultFPS
}

func usableFPS(fps float64) bool {
	return !math.IsNaN(fps) && fps > 0 && fps <= MaxFPS
}

// CooldownFrames converts a trailing-context budget into a frame count for a
// source running at fps, rounding up so the budget is always covered.
func CooldownFrames(cooldown time.Duration, fps float64) int {
	if cooldown <= 0 || fps <= 0 {
		return 0
	}
	frames := cooldown.Seconds() * fps
	return int(math.Ceil(frames - 1e-9))
}
