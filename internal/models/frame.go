package models

import (
	"fmt"
	"time"
)

// Channels is the number of interleaved BGR channels in Frame.Data.
const Channels = 3

// FrameSize is the pixel size of a video stream.
type FrameSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s FrameSize) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Valid reports whether both dimensions are positive.
func (s FrameSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Frame is a raw 8-bit BGR image with its position in the stream.
// Stages must not modify Data in place; producing a modified image means
// allocating a new Frame.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
}

// Size returns the frame dimensions.
func (f Frame) Size() FrameSize {
	return FrameSize{Width: f.Width, Height: f.Height}
}

// Validate checks that Data holds exactly Width*Height*Channels bytes.
func (f Frame) Validate() error {
	if !f.Size().Valid() {
		return fmt.Errorf("invalid frame size %s", f.Size())
	}
	if want := f.Width * f.Height * Channels; len(f.Data) != want {
		return fmt.Errorf("frame %d: got %d bytes, want %d", f.Seq, len(f.Data), want)
	}
	return nil
}

// WithData returns a copy of the frame metadata carrying a new pixel buffer.
func (f Frame) WithData(data []byte) Frame {
	f.Data = data
	return f
}
