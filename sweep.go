package pv

import (
	"sort"
)

// SweepResult holds metrics for one threshold value.
type SweepResult struct {
	Threshold float64
	Metrics   Metrics
}

// SweepThresholds generates threshold values from `from` up to, but
// excluding, `to` with the given step.
func SweepThresholds(from, to, step float64) []float64 {
	if step <= 0 {
		return nil
	}

	var thresholds []float64
	for i := 0; ; i++ {
		t := from + float64(i)*step
		if t >= to-step*1e-9 {
			break
		}
		thresholds = append(thresholds, t)
	}
	return thresholds
}

// Sweep evaluates the same detections at every threshold and returns results
// sorted by weighted score, best first. Equal scores keep the lower threshold
// first.
func (e *Evaluator) Sweep(detections []Detection, truth []ImageGroundTruth, thresholds []float64) []SweepResult {
	results := make([]SweepResult, 0, len(thresholds))
	for _, t := range thresholds {
		ev := evaluate(detections, truth, t, e.precisionWeight, e.recallWeight)
		results = append(results, SweepResult{
			Threshold: t,
			Metrics:   ev.Metrics,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		si, sj := results[i].Metrics.WeightedScore, results[j].Metrics.WeightedScore
		if si != sj {
			return si > sj
		}
		return results[i].Threshold < results[j].Threshold
	})

	e.logger.Debug("threshold sweep complete", "thresholds", len(thresholds))
	return results
}
