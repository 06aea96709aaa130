package pv

import (
	"testing"
)

func TestSweepThresholds(t *testing.T) {
	thresholds := SweepThresholds(0.01, 0.1, 0.02)

	want := []float64{0.01, 0.03, 0.05, 0.07, 0.09}
	if len(thresholds) != len(want) {
		t.Errorf("got %d thresholds, want %d", len(thresholds), len(want))
		t.Logf("got: %v", thresholds)
		return
	}

	for i := range want {
		diff := thresholds[i] - want[i]
		if diff < -0.001 || diff > 0.001 {
			t.Errorf("threshold[%d] = %v, want %v", i, thresholds[i], want[i])
		}
	}
}

func TestSweepThresholds_ExcludesMax(t *testing.T) {
	thresholds := SweepThresholds(0.1, 0.5, 0.1)
	if len(thresholds) != 4 {
		t.Errorf("got %v, want 4 thresholds below 0.5", thresholds)
	}
}

func TestSweepThresholds_InvalidStep(t *testing.T) {
	if got := SweepThresholds(0, 1, 0); got != nil {
		t.Errorf("SweepThresholds(step=0) = %v, want nil", got)
	}
}

func TestEvaluator_Sweep(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	truth := []ImageGroundTruth{
		{ImageID: "a", HasPV: true, Area: 10},
		{ImageID: "b", HasPV: true, Area: 10},
		{ImageID: "c"},
	}
	detections := []Detection{
		{ImageID: "a", Width: 1, Height: 1, Confidence: 0.9},
		{ImageID: "b", Width: 1, Height: 1, Confidence: 0.6},
		{ImageID: "c", Width: 1, Height: 1, Confidence: 0.4},
	}

	results := ev.Sweep(detections, truth, []float64{0.1, 0.5, 0.8, 0.95})
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}

	// 0.5 separates positives from the negative: precision 1, recall 1.
	if results[0].Threshold != 0.5 {
		t.Errorf("best threshold = %v, want 0.5", results[0].Threshold)
	}
	if results[0].Metrics.F1 != 1 {
		t.Errorf("best F1 = %v, want 1", results[0].Metrics.F1)
	}

	for i := 1; i < len(results); i++ {
		if results[i].Metrics.WeightedScore > results[i-1].Metrics.WeightedScore {
			t.Errorf("results not sorted at %d: %v > %v", i,
				results[i].Metrics.WeightedScore, results[i-1].Metrics.WeightedScore)
		}
	}

	last := results[len(results)-1]
	if last.Threshold != 0.95 || last.Metrics.WeightedScore != 0 {
		t.Errorf("worst = %+v, want threshold 0.95 with score 0", last)
	}
}
