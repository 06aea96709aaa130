package pv

import (
	"fmt"
	"log/slog"
	"math"
)

// ImageResult pairs the ground truth of one image with its prediction.
type ImageResult struct {
	Truth      ImageGroundTruth
	Prediction ImagePrediction
}

// Evaluation is the outcome of scoring detections against ground truth.
type Evaluation struct {
	Metrics Metrics
	Images  []ImageResult // one per distinct ground-truth image, in input order
}

// Evaluator scores detections against image-level ground truth.
// It holds no state between calls and is safe for concurrent use.
type Evaluator struct {
	threshold       float64
	precisionWeight float64
	recallWeight    float64
	logger          *slog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(opts ...Option) (*Evaluator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if math.IsNaN(cfg.threshold) || cfg.threshold < 0 || cfg.threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, cfg.threshold)
	}
	wp, wr := cfg.precisionWeight, cfg.recallWeight
	if wp < 0 || wr < 0 || wp+wr == 0 {
		return nil, fmt.Errorf("%w: precision=%v recall=%v", ErrInvalidWeights, wp, wr)
	}

	return &Evaluator{
		threshold:       cfg.threshold,
		precisionWeight: wp,
		recallWeight:    wr,
		logger:          cfg.logger,
	}, nil
}

// Threshold returns the configured confidence threshold.
func (e *Evaluator) Threshold() float64 {
	return e.threshold
}

// Evaluate aggregates detections and scores them against truth.
func (e *Evaluator) Evaluate(detections []Detection, truth []ImageGroundTruth) *Evaluation {
	ev := evaluate(detections, truth, e.threshold, e.precisionWeight, e.recallWeight)

	m := ev.Metrics
	if m.SkippedDetections > 0 {
		e.logger.Warn("skipped malformed detections", "count", m.SkippedDetections)
	}
	if m.UnmatchedImages > 0 {
		e.logger.Warn("dropped predictions without ground truth", "images", m.UnmatchedImages)
	}
	if m.DuplicateImages > 0 {
		e.logger.Warn("ignored duplicate ground-truth images", "images", m.DuplicateImages)
	}
	e.logger.Debug("evaluated",
		"threshold", e.threshold,
		"images", m.TotalImages,
		"area_images", m.AreaImages,
		"f1", m.F1)

	return ev
}

// Evaluate scores detections against truth at the given threshold with equal
// precision and recall weights.
func Evaluate(detections []Detection, truth []ImageGroundTruth, threshold float64) Metrics {
	return evaluate(detections, truth, threshold, 1.0, 1.0).Metrics
}

func evaluate(detections []Detection, truth []ImageGroundTruth, threshold, wp, wr float64) *Evaluation {
	agg := Aggregate(detections, threshold)

	ev := &Evaluation{
		Images: make([]ImageResult, 0, len(truth)),
	}
	ev.Metrics.Threshold = threshold
	ev.Metrics.SkippedDetections = agg.Skipped

	// Match each ground-truth image to its prediction; absent predictions
	// mean no PV and zero area.
	seen := make(map[string]struct{}, len(truth))
	for _, gt := range truth {
		if _, dup := seen[gt.ImageID]; dup {
			ev.Metrics.DuplicateImages++
			continue
		}
		seen[gt.ImageID] = struct{}{}

		pred, ok := agg.Predictions[gt.ImageID]
		if !ok {
			pred = ImagePrediction{ImageID: gt.ImageID}
		}
		ev.Images = append(ev.Images, ImageResult{Truth: gt, Prediction: pred})
	}

	for id := range agg.Predictions {
		if _, ok := seen[id]; !ok {
			ev.Metrics.UnmatchedImages++
		}
	}

	classify(&ev.Metrics, ev.Images, wp, wr)
	areaErrors(&ev.Metrics, ev.Images)

	return ev
}
