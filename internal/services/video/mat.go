// Package video holds the OpenCV-backed collaborators of the pipeline:
// frame sources, the clip encoder, the annotator and JPEG conversion.
package video

import (
	"fmt"
	"time"
	"weaponcam/internal/models"

	"gocv.io/x/gocv"
)

// toMat wraps the frame's pixels in a Mat. The Mat may share memory with
// frame.Data, so callers must not draw on it and must Close it.
func toMat(frame models.Frame) (gocv.Mat, error) {
	if err := frame.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	return gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
}

// fromMat copies a BGR Mat into a new Frame.
func fromMat(mat gocv.Mat, seq uint64, ts time.Time) (models.Frame, error) {
	if mat.Empty() {
		return models.Frame{}, fmt.Errorf("empty frame")
	}
	if mat.Type() != gocv.MatTypeCV8UC3 {
		converted := gocv.NewMat()
		defer converted.Close()
		if mat.Channels() == 1 {
			gocv.CvtColor(mat, &converted, gocv.ColorGrayToBGR)
		} else if mat.Channels() == 4 {
			gocv.CvtColor(mat, &converted, gocv.ColorBGRAToBGR)
		} else {
			return models.Frame{}, fmt.Errorf("unsupported frame type %v", mat.Type())
		}
		mat = converted
	}
	return models.Frame{
		Seq:       seq,
		Timestamp: ts,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Data:      mat.ToBytes(),
	}, nil
}
