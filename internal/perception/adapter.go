// Package perception turns decoded frames into hand and body keypoints.
//
// Landmark detection itself is delegated to a Detector. Everything after
// that (finger counting, gesture labels, body keypoints) is pure and lives
// in Analyzer.
package perception

import (
	"context"
	"errors"
	"image"

	"github.com/dkeye/Camlink/internal/domain"
)

var ErrNoImage = errors.New("no image")

// Adapter converts a decoded image into a PerceptionResult. An error means
// the frame could not be analyzed; callers treat it as "nothing detected".
type Adapter interface {
	Analyze(ctx context.Context, img image.Image) (domain.PerceptionResult, error)
}

// Landmark is a normalized landmark as reported by the detector.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Hand is one detected hand: 21 landmarks plus the detector's handedness
// label ("Left" or "Right").
type Hand struct {
	Handedness string     `json:"handedness"`
	Landmarks  []Landmark `json:"landmarks"`
}

// Detection is the raw per-frame output of a Detector. Pose uses the
// 33-point body topology; an empty slice means no body.
type Detection struct {
	Hands []Hand     `json:"hands"`
	Pose  []Landmark `json:"pose"`
}

type Detector interface {
	Detect(ctx context.Context, img image.Image) (Detection, error)
}

// NopDetector never detects anything. It keeps the pipeline running when
// no landmark backend is configured.
type NopDetector struct{}

func (NopDetector) Detect(context.Context, image.Image) (Detection, error) {
	return Detection{}, nil
}

// AdapterFunc lets tests plug a function in as an Adapter.
type AdapterFunc func(ctx context.Context, img image.Image) (domain.PerceptionResult, error)

func (f AdapterFunc) Analyze(ctx context.Context, img image.Image) (domain.PerceptionResult, error) {
	return f(ctx, img)
}
