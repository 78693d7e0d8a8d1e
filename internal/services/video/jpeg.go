package video

import (
	"fmt"
	"weaponcam/internal/models"

	"gocv.io/x/gocv"
)

// EncodeJPEG compresses a frame for viewers.
func EncodeJPEG(frame models.Frame) ([]byte, error) {
	mat, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
