package ai

import (
	"testing"
	"weaponcam/internal/models"
)

func TestSuppressPerLabel(t *testing.T) {
	dets := []models.Detection{
		{Label: "pistol", Confidence: 0.5, Box: models.Box{X: 0, Y: 0, Width: 10, Height: 10}},
		{Label: "pistol", Confidence: 0.9, Box: models.Box{X: 1, Y: 0, Width: 10, Height: 10}},
		{Label: "pistol", Confidence: 0.4, Box: models.Box{X: 50, Y: 50, Width: 10, Height: 10}},
		{Label: "rifle", Confidence: 0.7, Box: models.Box{X: 1, Y: 0, Width: 10, Height: 10}},
	}

	got := suppress(dets, MinScore, NMSThreshold)
	if len(got) != 3 {
		t.Fatalf("Expected 3 detections, got %d: %+v", len(got), got)
	}

	want := []struct {
		label string
		conf  float32
	}{
		{"pistol", 0.9},
		{"rifle", 0.7},
		{"pistol", 0.4},
	}
	for i, w := range want {
		if got[i].Label != w.label || got[i].Confidence != w.conf {
			t.Errorf("Position %d: expected %s %.1f, got %s %.2f", i, w.label, w.conf, got[i].Label, got[i].Confidence)
		}
	}
}

func TestSuppressSingleDetection(t *testing.T) {
	dets := []models.Detection{{Label: "knife", Confidence: 0.3, Box: models.Box{Width: 5, Height: 5}}}
	if got := suppress(dets, MinScore, NMSThreshold); len(got) != 1 {
		t.Errorf("Expected the detection to be kept, got %d", len(got))
	}
	if got := suppress(nil, MinScore, NMSThreshold); len(got) != 0 {
		t.Errorf("Expected no detections, got %d", len(got))
	}
}
