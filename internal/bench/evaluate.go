package bench

import (
	"errors"
	"fmt"

	pv "github.com/jamesainslie/go-pv"
)

// ErrInvalidSweep indicates an empty or inverted sweep range.
var ErrInvalidSweep = errors.New("bench: invalid sweep range")

// Result is one evaluated run.
type Result struct {
	*pv.Evaluation
	FailedImages int
}

// Evaluate scores a collection against the dataset. Images whose detection
// failed are left out of the ground truth. Predictions the backend could not
// decode count as skipped detections.
func Evaluate(ev *pv.Evaluator, ds *Dataset, c *Collection) *Result {
	res := &Result{
		Evaluation:   ev.Evaluate(c.Detections(), ds.GroundTruth(c.Failed...)),
		FailedImages: len(c.Failed),
	}
	res.Metrics.SkippedDetections += c.Skipped()
	return res
}

// SweepRange is the half-open threshold range [Min, Max).
type SweepRange struct {
	Min, Max, Step float64
}

// Thresholds expands the range.
func (r SweepRange) Thresholds() ([]float64, error) {
	if r.Step <= 0 || r.Min >= r.Max || r.Min < 0 || r.Max > 1 {
		return nil, fmt.Errorf("%w: min=%v max=%v step=%v", ErrInvalidSweep, r.Min, r.Max, r.Step)
	}
	return pv.SweepThresholds(r.Min, r.Max, r.Step), nil
}

// Sweep evaluates c at every threshold of r, best weighted score first.
func Sweep(ev *pv.Evaluator, ds *Dataset, c *Collection, r SweepRange) ([]pv.SweepResult, error) {
	thresholds, err := r.Thresholds()
	if err != nil {
		return nil, err
	}
	results := ev.Sweep(c.Detections(), ds.GroundTruth(c.Failed...), thresholds)
	skipped := c.Skipped()
	for i := range results {
		results[i].Metrics.SkippedDetections += skipped
	}
	return results, nil
}
