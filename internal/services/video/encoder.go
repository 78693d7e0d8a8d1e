package video

import (
	"fmt"
	"weaponcam/internal/models"
	"weaponcam/internal/services/storage"

	"gocv.io/x/gocv"
)

// WriterFactory creates OpenCV video writers with a fixed FourCC codec.
type WriterFactory struct {
	Codec string
}

// NewEncoder implements storage.EncoderFactory.
func (f WriterFactory) NewEncoder(path string, size models.FrameSize, fps float64) (storage.Encoder, error) {
	codec := f.Codec
	if codec == "" {
		codec = "mp4v"
	}
	writer, err := gocv.VideoWriterFile(path, codec, fps, size.Width, size.Height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open video writer: %w", err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("video writer for codec %s did not open", codec)
	}
	return &writerEncoder{writer: writer}, nil
}

type writerEncoder struct {
	writer *gocv.VideoWriter
}

func (e *writerEncoder) Write(frame models.Frame) error {
	mat, err := toMat(frame)
	if err != nil {
		return err
	}
	defer mat.Close()
	return e.writer.Write(mat)
}

func (e *writerEncoder) Close() error {
	return e.writer.Close()
}
