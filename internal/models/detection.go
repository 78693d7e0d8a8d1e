package models

import (
	"fmt"
	"image"
)

// ModelSource identifies which of the two detection models produced a Detection.
type ModelSource string

const (
	SourceGeneral ModelSource = "GENERAL"
	SourceWeapon  ModelSource = "WEAPON"
)

// Box is a bounding box in pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Detection represents a single object found in one frame by one model.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float32     `json:"confidence"`
	Box        Box         `json:"box"`
	Source     ModelSource `json:"model_source"`
}

// Caption is the text drawn next to the box.
func (d Detection) Caption() string {
	return fmt.Sprintf("%s (%.2f)", d.Label, d.Confidence)
}

// HighestConfidence returns the detection with the highest confidence.
// ok is false for an empty list.
func HighestConfidence(detections []Detection) (best Detection, ok bool) {
	for i, d := range detections {
		if i == 0 || d.Confidence > best.Confidence {
			best = d
			ok = true
		}
	}
	return best, ok
}
