package video

import (
	"image"
	"image/color"
	"weaponcam/internal/models"

	"gocv.io/x/gocv"
)

var (
	weaponColor  = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	generalColor = color.RGBA{R: 0, G: 0, B: 255, A: 0}
)

// Annotator draws detection boxes and captions. It keeps no state.
type Annotator struct{}

// Annotate returns a new frame with general detections in blue and weapon
// detections in red. The input frame is left untouched.
func (Annotator) Annotate(frame models.Frame, general, weapon []models.Detection) (models.Frame, error) {
	if len(general) == 0 && len(weapon) == 0 {
		return frame, nil
	}

	src, err := toMat(frame)
	if err != nil {
		return frame, err
	}
	defer src.Close()

	mat := src.Clone()
	defer mat.Close()

	for _, d := range general {
		if err := drawDetection(&mat, d, generalColor); err != nil {
			return frame, err
		}
	}
	for _, d := range weapon {
		if err := drawDetection(&mat, d, weaponColor); err != nil {
			return frame, err
		}
	}

	return frame.WithData(mat.ToBytes()), nil
}

func drawDetection(mat *gocv.Mat, d models.Detection, c color.RGBA) error {
	if err := gocv.Rectangle(mat, d.Box.Rect(), c, 2); err != nil {
		return err
	}
	y := d.Box.Y - 10
	if y < 10 {
		y = d.Box.Y + 15
	}
	return gocv.PutText(mat, d.Caption(), image.Pt(d.Box.X, y), gocv.FontHersheySimplex, 0.5, c, 2)
}
