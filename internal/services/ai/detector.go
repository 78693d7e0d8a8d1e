// Package ai runs OpenCV DNN models and turns their output into detections.
package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"weaponcam/internal/config"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
	"weaponcam/internal/services/ai/decode"

	"gocv.io/x/gocv"
)

const (
	// MinScore is the floor for candidate boxes. The dual detector applies
	// the configured per-model threshold on top of it.
	MinScore = 0.25
	// NMSThreshold is the IoU above which the weaker of two boxes of the
	// same label is dropped.
	NMSThreshold = 0.45
)

// Model is one loaded detection network. Predict is safe for concurrent use;
// calls are serialized because a gocv.Net is not.
type Model struct {
	name      string
	net       gocv.Net
	layout    decode.Layout
	labels    []string
	inputSize int
	logger    *logger.Logger
	mutex     sync.Mutex
}

// LoadModel reads the network described by cfg. defaultLabels is used when
// cfg has no labels file.
func LoadModel(name string, cfg config.ModelConfig, defaultLabels []string, logger *logger.Logger) (*Model, error) {
	layout, err := decode.ParseLayout(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", name, err)
	}

	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	labels := defaultLabels
	if cfg.LabelsPath != "" {
		if labels, err = decode.LoadLabels(cfg.LabelsPath); err != nil {
			return nil, err
		}
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load %s network from %s", name, cfg.ModelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	inputSize := cfg.InputSize
	if layout == decode.LayoutSSD && inputSize <= 0 {
		inputSize = 300
	}
	if inputSize <= 0 {
		inputSize = 640
	}

	logger.Info("🧠 %s network initialized from %s (%s, %d labels)", name, cfg.ModelPath, layout, len(labels))
	return &Model{
		name:      name,
		net:       net,
		layout:    layout,
		labels:    labels,
		inputSize: inputSize,
		logger:    logger,
	}, nil
}

// Name returns the model name used in logs and errors.
func (m *Model) Name() string {
	return m.name
}

// Predict runs the network on one frame.
func (m *Model) Predict(ctx context.Context, frame models.Frame) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap frame: %w", err)
	}
	defer mat.Close()

	blob := m.blob(mat)
	defer blob.Close()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	values, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s output: %w", m.name, err)
	}
	data := make([]float32, len(values))
	copy(data, values)

	params := decode.Params{
		FrameWidth:  frame.Width,
		FrameHeight: frame.Height,
		InputSize:   m.inputSize,
		MinScore:    MinScore,
		Labels:      m.labels,
	}

	switch m.layout {
	case decode.LayoutSSD:
		return decode.SSD(data, params), nil
	default:
		dims := output.Size()
		if len(dims) != 3 {
			return nil, fmt.Errorf("unexpected %s output shape %v", m.name, dims)
		}
		candidates, err := decode.YOLOv8(data, dims[1], dims[2], params)
		if err != nil {
			return nil, err
		}
		return suppress(candidates, MinScore, NMSThreshold), nil
	}
}

func (m *Model) blob(mat gocv.Mat) gocv.Mat {
	size := image.Pt(m.inputSize, m.inputSize)
	if m.layout == decode.LayoutSSD {
		return gocv.BlobFromImage(mat, 1.0/127.5, size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	}
	return gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
}

// Close releases the network.
func (m *Model) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.net.Empty() {
		return m.net.Close()
	}
	return nil
}
