package report

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	pv "github.com/jamesainslie/go-pv"
	"github.com/jamesainslie/go-pv/coco"
)

func writeCSV(path string, header []string, rows [][]string) error {
	return create(path, func(f *os.File) error {
		return writeRows(f, header, rows)
	})
}

func writeRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func btoa(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func optional(f *float64) string {
	if f == nil {
		return ""
	}
	return ftoa(*f)
}

// WriteObjects writes the object-level ground truth.
func WriteObjects(path string, objects []coco.Object) error {
	header := []string{
		"split", "image_id", "file_name", "image_width", "image_height",
		"category_id", "category_name", "x_min", "y_min", "width", "height",
		"x_max", "y_max", "area_px", "area_m2", "centroid_lat", "centroid_lon",
	}
	rows := make([][]string, 0, len(objects))
	for _, o := range objects {
		rows = append(rows, []string{
			o.Split, o.ImageID, o.FileName, itoa(o.ImageWidth), itoa(o.ImageHeight),
			itoa(o.CategoryID), o.CategoryName, ftoa(o.XMin), ftoa(o.YMin), ftoa(o.Width), ftoa(o.Height),
			ftoa(o.XMax()), ftoa(o.YMax()), ftoa(o.AreaPx), optional(o.AreaM2), optional(o.CentroidLat), optional(o.CentroidLon),
		})
	}
	return writeCSV(path, header, rows)
}

// WriteGroundTruth writes the image-level ground truth, negatives included.
func WriteGroundTruth(path string, images []coco.ImageRecord) error {
	header := []string{
		"split", "image_id", "file_name", "image_width", "image_height",
		"num_boxes", "has_pv", "area_px", "area_m2",
	}
	rows := make([][]string, 0, len(images))
	for _, r := range images {
		rows = append(rows, []string{
			r.Split, r.ImageID, r.FileName, itoa(r.ImageWidth), itoa(r.ImageHeight),
			itoa(r.NumBoxes), btoa(r.HasPV()), ftoa(r.AreaPx), ftoa(r.AreaM2),
		})
	}
	return writeCSV(path, header, rows)
}

// WritePredictions writes the image-level predictions.
func WritePredictions(path string, images []pv.ImageResult) error {
	header := []string{"image_id", "num_preds", "max_conf", "has_pv_pred", "area_pred_px"}
	rows := make([][]string, 0, len(images))
	for _, r := range images {
		p := r.Prediction
		rows = append(rows, []string{
			r.Truth.ImageID, itoa(p.NumDetections), ftoa(p.MaxConfidence), btoa(p.HasPV), ftoa(p.Area),
		})
	}
	return writeCSV(path, header, rows)
}

// WriteMerged writes ground truth and prediction side by side.
func WriteMerged(path string, images []pv.ImageResult) error {
	header := []string{
		"image_id", "has_pv", "area_gt_px", "has_pv_pred", "area_pred_px",
		"num_preds", "max_conf", "area_abs_err_px",
	}
	rows := make([][]string, 0, len(images))
	for _, r := range images {
		t, p := r.Truth, r.Prediction
		rows = append(rows, []string{
			t.ImageID, btoa(t.HasPV), ftoa(t.Area), btoa(p.HasPV), ftoa(p.Area),
			itoa(p.NumDetections), ftoa(p.MaxConfidence), ftoa(math.Abs(p.Area - t.Area)),
		})
	}
	return writeCSV(path, header, rows)
}

// WriteSweep writes one row per threshold, in the given order.
func WriteSweep(path string, results []pv.SweepResult) error {
	header := []string{
		"threshold", "tp", "fp", "fn", "tn", "accuracy", "precision", "recall",
		"f1_score", "weighted_score", "mae_px2", "rmse_px2", "mape",
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		m := r.Metrics
		rows = append(rows, []string{
			ftoa(r.Threshold), itoa(m.TruePositives), itoa(m.FalsePositives), itoa(m.FalseNegatives), itoa(m.TrueNegatives),
			ftoa(m.Accuracy), ftoa(m.Precision), ftoa(m.Recall), ftoa(m.F1), ftoa(m.WeightedScore),
			ftoa(m.MAE), ftoa(m.RMSE), ftoa(m.MAPE),
		})
	}
	return writeCSV(path, header, rows)
}
