// Package decode turns raw DNN output tensors into detections. It works on
// plain float slices so it can be used and tested without OpenCV.
package decode

import (
	"fmt"
	"weaponcam/internal/models"
)

// Layout names a network output format.
type Layout string

const (
	// LayoutSSD is the [1,1,N,7] output of SSD style networks:
	// batch, class, confidence, x1, y1, x2, y2 with normalized corners.
	LayoutSSD Layout = "ssd"
	// LayoutYOLOv8 is the [1,4+classes,N] output of YOLOv8 exports:
	// cx, cy, w, h in input pixels followed by one score per class.
	LayoutYOLOv8 Layout = "yolov8"
)

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutSSD, LayoutYOLOv8:
		return Layout(s), nil
	}
	return "", fmt.Errorf("unknown model format %q", s)
}

// Params describe how to map network output back onto the frame.
type Params struct {
	FrameWidth  int
	FrameHeight int
	InputSize   int     // square network input, YOLO only
	MinScore    float32 // candidates below this are ignored
	Labels      []string
}

// SSD decodes rows of seven values.
func SSD(data []float32, p Params) []models.Detection {
	var out []models.Detection
	for i := 0; i+7 <= len(data); i += 7 {
		row := data[i : i+7]
		conf := row[2]
		if conf < p.MinScore {
			continue
		}
		x1 := int(row[3] * float32(p.FrameWidth))
		y1 := int(row[4] * float32(p.FrameHeight))
		x2 := int(row[5] * float32(p.FrameWidth))
		y2 := int(row[6] * float32(p.FrameHeight))
		box, ok := clip(x1, y1, x2-x1, y2-y1, p.FrameWidth, p.FrameHeight)
		if !ok {
			continue
		}
		out = append(out, models.Detection{
			Label:      Label(p.Labels, int(row[1])),
			Confidence: conf,
			Box:        box,
		})
	}
	return out
}

// YOLOv8 decodes a channel-major tensor of attrs x count values, where
// attrs = 4 + number of classes. It returns every candidate above MinScore;
// overlapping boxes are left for non-maximum suppression.
func YOLOv8(data []float32, attrs, count int, p Params) ([]models.Detection, error) {
	if attrs < 5 || count <= 0 {
		return nil, fmt.Errorf("unexpected YOLOv8 output shape [%d %d]", attrs, count)
	}
	if len(data) < attrs*count {
		return nil, fmt.Errorf("YOLOv8 output has %d values, want %d", len(data), attrs*count)
	}
	if p.InputSize <= 0 {
		return nil, fmt.Errorf("input size must be positive")
	}

	xf := float32(p.FrameWidth) / float32(p.InputSize)
	yf := float32(p.FrameHeight) / float32(p.InputSize)
	at := func(a, i int) float32 { return data[a*count+i] }

	var candidates []models.Detection
	for i := 0; i < count; i++ {
		classID, score := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := at(c, i); s > score {
				classID, score = c-4, s
			}
		}
		if classID < 0 || score < p.MinScore {
			continue
		}
		cx, cy, w, h := at(0, i)*xf, at(1, i)*yf, at(2, i)*xf, at(3, i)*yf
		box, ok := clip(int(cx-w/2), int(cy-h/2), int(w), int(h), p.FrameWidth, p.FrameHeight)
		if !ok {
			continue
		}
		candidates = append(candidates, models.Detection{
			Label:      Label(p.Labels, classID),
			Confidence: score,
			Box:        box,
		})
	}
	return candidates, nil
}

func clip(x, y, w, h, maxW, maxH int) (models.Box, bool) {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if maxW > 0 && x+w > maxW {
		w = maxW - x
	}
	if maxH > 0 && y+h > maxH {
		h = maxH - y
	}
	if w <= 0 || h <= 0 {
		return models.Box{}, false
	}
	return models.Box{X: x, Y: y, Width: w, Height: h}, true
}
