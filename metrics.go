package pv

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics holds evaluation results over one image set.
//
// Classification fields cover every ground-truth image. Area fields cover
// only images where the ground truth or the prediction indicates PV; MAPE
// further excludes images whose ground-truth area is zero. Area fields are
// NaN when their subset is empty.
type Metrics struct {
	Threshold float64

	TruePositives  int
	FalsePositives int
	FalseNegatives int
	TrueNegatives  int

	Accuracy      float64
	Precision     float64
	Recall        float64
	F1            float64
	WeightedScore float64

	MAE  float64 // pixels²
	RMSE float64 // pixels²
	MAPE float64 // fraction, 0.1 == 10%

	TotalImages       int
	AreaImages        int
	MAPEImages        int
	MAPEExcluded      int // area images with zero ground-truth area
	SkippedDetections int
	UnmatchedImages   int // predicted images without ground truth
	DuplicateImages   int // repeated ground-truth image IDs
}

// Values returns the metrics as a flat key/value mapping. Undefined values
// are nil.
func (m Metrics) Values() map[string]any {
	return map[string]any{
		"threshold":          m.Threshold,
		"tp":                 m.TruePositives,
		"fp":                 m.FalsePositives,
		"fn":                 m.FalseNegatives,
		"tn":                 m.TrueNegatives,
		"accuracy":           m.Accuracy,
		"precision":          m.Precision,
		"recall":             m.Recall,
		"f1_score":           m.F1,
		"weighted_score":     m.WeightedScore,
		"mae_px2":            undefinedAsNil(m.MAE),
		"rmse_px2":           undefinedAsNil(m.RMSE),
		"mape":               undefinedAsNil(m.MAPE),
		"total_images":       m.TotalImages,
		"area_images":        m.AreaImages,
		"mape_images":        m.MAPEImages,
		"mape_excluded":      m.MAPEExcluded,
		"skipped_detections": m.SkippedDetections,
		"unmatched_images":   m.UnmatchedImages,
		"duplicate_images":   m.DuplicateImages,
	}
}

// MarshalJSON encodes Values, so NaN metrics become null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Values())
}

// UnmarshalJSON decodes the MarshalJSON form; null metrics become NaN.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var v struct {
		Threshold         float64  `json:"threshold"`
		TP                int      `json:"tp"`
		FP                int      `json:"fp"`
		FN                int      `json:"fn"`
		TN                int      `json:"tn"`
		Accuracy          float64  `json:"accuracy"`
		Precision         float64  `json:"precision"`
		Recall            float64  `json:"recall"`
		F1                float64  `json:"f1_score"`
		WeightedScore     float64  `json:"weighted_score"`
		MAE               *float64 `json:"mae_px2"`
		RMSE              *float64 `json:"rmse_px2"`
		MAPE              *float64 `json:"mape"`
		TotalImages       int      `json:"total_images"`
		AreaImages        int      `json:"area_images"`
		MAPEImages        int      `json:"mape_images"`
		MAPEExcluded      int      `json:"mape_excluded"`
		SkippedDetections int      `json:"skipped_detections"`
		UnmatchedImages   int      `json:"unmatched_images"`
		DuplicateImages   int      `json:"duplicate_images"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*m = Metrics{
		Threshold:         v.Threshold,
		TruePositives:     v.TP,
		FalsePositives:    v.FP,
		FalseNegatives:    v.FN,
		TrueNegatives:     v.TN,
		Accuracy:          v.Accuracy,
		Precision:         v.Precision,
		Recall:            v.Recall,
		F1:                v.F1,
		WeightedScore:     v.WeightedScore,
		MAE:               nilAsUndefined(v.MAE),
		RMSE:              nilAsUndefined(v.RMSE),
		MAPE:              nilAsUndefined(v.MAPE),
		TotalImages:       v.TotalImages,
		AreaImages:        v.AreaImages,
		MAPEImages:        v.MAPEImages,
		MAPEExcluded:      v.MAPEExcluded,
		SkippedDetections: v.SkippedDetections,
		UnmatchedImages:   v.UnmatchedImages,
		DuplicateImages:   v.DuplicateImages,
	}
	return nil
}

func nilAsUndefined(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func undefinedAsNil(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// classify fills the confusion counts and ratios. Ratios with a zero
// denominator stay 0.
func classify(m *Metrics, images []ImageResult, wp, wr float64) {
	for _, r := range images {
		switch {
		case r.Truth.HasPV && r.Prediction.HasPV:
			m.TruePositives++
		case !r.Truth.HasPV && r.Prediction.HasPV:
			m.FalsePositives++
		case r.Truth.HasPV && !r.Prediction.HasPV:
			m.FalseNegatives++
		default:
			m.TrueNegatives++
		}
	}
	m.TotalImages = len(images)

	tp, fp, fn, tn := m.TruePositives, m.FalsePositives, m.FalseNegatives, m.TrueNegatives
	if total := tp + fp + fn + tn; total > 0 {
		m.Accuracy = float64(tp+tn) / float64(total)
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	if wp+wr > 0 {
		m.WeightedScore = (wp*m.Precision + wr*m.Recall) / (wp + wr)
	}
}

// areaErrors fills MAE, RMSE and MAPE over images where either side
// indicates PV.
func areaErrors(m *Metrics, images []ImageResult) {
	var absErr, sqErr, relErr []float64
	for _, r := range images {
		if !r.Truth.HasPV && !r.Prediction.HasPV {
			continue
		}
		diff := r.Prediction.Area - r.Truth.Area
		absErr = append(absErr, math.Abs(diff))
		sqErr = append(sqErr, diff*diff)

		if r.Truth.Area > 0 {
			relErr = append(relErr, math.Abs(diff)/r.Truth.Area)
		} else {
			m.MAPEExcluded++
		}
	}

	m.AreaImages = len(absErr)
	m.MAPEImages = len(relErr)
	m.MAE, m.RMSE, m.MAPE = math.NaN(), math.NaN(), math.NaN()

	if len(absErr) > 0 {
		m.MAE = stat.Mean(absErr, nil)
		m.RMSE = math.Sqrt(stat.Mean(sqErr, nil))
	}
	if len(relErr) > 0 {
		m.MAPE = stat.Mean(relErr, nil)
	}
}
