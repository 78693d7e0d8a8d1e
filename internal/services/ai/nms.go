package ai

import (
	"image"
	"sort"
	"weaponcam/internal/models"

	"gocv.io/x/gocv"
)

// suppress runs OpenCV non-maximum suppression separately for each label,
// so boxes of different classes never suppress each other. The result is
// ordered by confidence, strongest first.
func suppress(dets []models.Detection, scoreThreshold, nmsThreshold float32) []models.Detection {
	if len(dets) < 2 {
		return dets
	}

	byLabel := make(map[string][]models.Detection)
	for _, d := range dets {
		byLabel[d.Label] = append(byLabel[d.Label], d)
	}

	kept := make([]models.Detection, 0, len(dets))
	for _, group := range byLabel {
		boxes := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, d := range group {
			boxes[i] = d.Box.Rect()
			scores[i] = d.Confidence
		}
		for _, idx := range gocv.NMSBoxes(boxes, scores, scoreThreshold, nmsThreshold) {
			kept = append(kept, group[idx])
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})
	return kept
}
