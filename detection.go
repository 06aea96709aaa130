package pv

import (
	"math"

	"github.com/samber/lo"
)

// Detection is one predicted bounding box on one image.
type Detection struct {
	ImageID    string
	X          float64 // box center, pixels
	Y          float64 // box center, pixels
	Width      float64
	Height     float64
	Confidence float64
	ClassID    int
	Class      string
}

// Area returns the box area in square pixels.
func (d Detection) Area() float64 {
	return d.Width * d.Height
}

// Valid reports whether d can take part in aggregation. Detections without
// an image, with non-finite values, negative extents or a confidence outside
// [0, 1] are malformed.
func (d Detection) Valid() bool {
	if d.ImageID == "" {
		return false
	}
	for _, v := range [...]float64{d.X, d.Y, d.Width, d.Height, d.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if d.Width < 0 || d.Height < 0 {
		return false
	}
	return d.Confidence >= 0 && d.Confidence <= 1
}

// ImageGroundTruth is the image-level label of one dataset image.
type ImageGroundTruth struct {
	ImageID string
	HasPV   bool
	Area    float64 // total annotated area, pixels²
}

// ImagePrediction is the image-level decision derived from detections.
type ImagePrediction struct {
	ImageID       string
	HasPV         bool
	Area          float64 // summed area of qualifying detections, pixels²
	NumDetections int     // detections above the threshold
	MaxConfidence float64 // over all valid detections of the image
}

// Aggregation holds per-image predictions keyed by image ID.
type Aggregation struct {
	Predictions map[string]ImagePrediction
	Skipped     int // malformed detections left out
}

// Aggregate groups detections by image and applies the confidence threshold.
// A detection qualifies when its confidence is strictly greater than
// threshold; an image has PV when at least one detection qualifies.
func Aggregate(detections []Detection, threshold float64) Aggregation {
	valid := lo.Filter(detections, func(d Detection, _ int) bool {
		return d.Valid()
	})
	groups := lo.GroupBy(valid, func(d Detection) string {
		return d.ImageID
	})

	preds := make(map[string]ImagePrediction, len(groups))
	for id, dets := range groups {
		p := ImagePrediction{ImageID: id}
		for _, d := range dets {
			p.MaxConfidence = max(p.MaxConfidence, d.Confidence)
			if d.Confidence > threshold {
				p.NumDetections++
				p.Area += d.Area()
			}
		}
		p.HasPV = p.NumDetections >= 1
		preds[id] = p
	}

	return Aggregation{
		Predictions: preds,
		Skipped:     len(detections) - len(valid),
	}
}
