// Package detection runs the general-object and weapon models over a frame
// with their failures kept apart.
package detection

import (
	"context"
	"fmt"
	"strings"
	"weaponcam/internal/models"
	"weaponcam/internal/services/eventlog"
)

// Predictor is one detection model.
type Predictor interface {
	Predict(ctx context.Context, frame models.Frame) ([]models.Detection, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, frame models.Frame) ([]models.Detection, error)

func (f PredictorFunc) Predict(ctx context.Context, frame models.Frame) ([]models.Detection, error) {
	return f(ctx, frame)
}

// Config holds the per-model settings of a DualDetector.
type Config struct {
	GeneralThreshold float32
	WeaponThreshold  float32
	// WeaponClasses limits which weapon-model labels count; empty keeps all.
	WeaponClasses []string
}

// DualDetector runs both models on every frame. A model that errors or
// panics contributes an empty list and an ERROR record; the other model's
// result is still returned.
type DualDetector struct {
	general       Predictor
	weapon        Predictor
	cfg           Config
	weaponClasses map[string]bool
	events        *eventlog.Reporter
}

// NewDualDetector binds two predictors to the reporter of one source.
// Either predictor may be nil, which disables that side.
func NewDualDetector(general, weapon Predictor, cfg Config, events *eventlog.Reporter) *DualDetector {
	d := &DualDetector{
		general: general,
		weapon:  weapon,
		cfg:     cfg,
		events:  events,
	}
	if len(cfg.WeaponClasses) > 0 {
		d.weaponClasses = make(map[string]bool, len(cfg.WeaponClasses))
		for _, c := range cfg.WeaponClasses {
			d.weaponClasses[strings.ToLower(strings.TrimSpace(c))] = true
		}
	}
	return d
}

// Infer returns the thresholded general and weapon detections for frame.
func (d *DualDetector) Infer(ctx context.Context, frame models.Frame) (general, weapon []models.Detection) {
	general = d.run(ctx, models.SourceGeneral, d.general, d.cfg.GeneralThreshold, frame)
	weapon = d.run(ctx, models.SourceWeapon, d.weapon, d.cfg.WeaponThreshold, frame)
	return general, weapon
}

func (d *DualDetector) run(ctx context.Context, source models.ModelSource, p Predictor, threshold float32, frame models.Frame) []models.Detection {
	if p == nil {
		return nil
	}

	raw, err := predict(ctx, p, frame)
	if err != nil {
		ierr := &models.InferenceError{Model: source, Seq: frame.Seq, Err: err}
		d.events.Error("%v", ierr)
		return nil
	}

	kept := make([]models.Detection, 0, len(raw))
	for _, det := range raw {
		if !(det.Confidence >= threshold) {
			continue
		}
		if source == models.SourceWeapon && d.weaponClasses != nil && !d.weaponClasses[strings.ToLower(det.Label)] {
			continue
		}
		det.Source = source
		kept = append(kept, det)
	}
	return kept
}

// predict converts a panic inside the model into an error.
func predict(ctx context.Context, p Predictor, frame models.Frame) (dets []models.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			dets, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Predict(ctx, frame)
}
