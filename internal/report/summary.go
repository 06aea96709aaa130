package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	pv "github.com/jamesainslie/go-pv"
)

// WriteMetrics writes the metrics record with the failed image count.
func WriteMetrics(path string, m pv.Metrics, failedImages int) error {
	values := m.Values()
	values["failed_images"] = failedImages

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	return create(path, func(f *os.File) error {
		_, err := f.Write(append(data, '\n'))
		return err
	})
}

func fmtFloat(f float64, prec int) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, f)
}

// RenderMetrics prints the metrics as a two-column table.
func RenderMetrics(w io.Writer, m pv.Metrics, failedImages int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("PV evaluation @ %.2f", m.Threshold))
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Images", m.TotalImages},
		{"TP / FP / FN / TN", fmt.Sprintf("%d / %d / %d / %d", m.TruePositives, m.FalsePositives, m.FalseNegatives, m.TrueNegatives)},
		{"Accuracy", fmtFloat(m.Accuracy, 4)},
		{"Precision", fmtFloat(m.Precision, 4)},
		{"Recall", fmtFloat(m.Recall, 4)},
		{"F1", fmtFloat(m.F1, 4)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Area images", m.AreaImages},
		{"MAE (px²)", fmtFloat(m.MAE, 1)},
		{"RMSE (px²)", fmtFloat(m.RMSE, 1)},
		{"MAPE", fmtPercent(m.MAPE)},
		{"MAPE excluded (gt=0)", m.MAPEExcluded},
	})
	if failedImages > 0 || m.SkippedDetections > 0 || m.UnmatchedImages > 0 {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Failed images", failedImages},
			{"Skipped detections", m.SkippedDetections},
			{"Unmatched images", m.UnmatchedImages},
		})
	}
	t.Render()
}

func fmtPercent(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", f*100)
}

// RenderSweep prints sweep results in threshold order and marks the best.
func RenderSweep(w io.Writer, results []pv.SweepResult) {
	if len(results) == 0 {
		return
	}
	best := results[0]

	ordered := append([]pv.SweepResult(nil), results...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Threshold < ordered[j].Threshold })

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Thresh", "Prec", "Rec", "F1", "Weighted", "MAE", "MAPE", ""})
	for _, r := range ordered {
		m := r.Metrics
		mark := ""
		if r.Threshold == best.Threshold {
			mark = "*"
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%.3f", r.Threshold),
			fmtFloat(m.Precision, 3), fmtFloat(m.Recall, 3), fmtFloat(m.F1, 3), fmtFloat(m.WeightedScore, 3),
			fmtFloat(m.MAE, 1), fmtPercent(m.MAPE), mark,
		})
	}
	t.AppendFooter(table.Row{"Optimal", "", "", "", fmtFloat(best.Metrics.WeightedScore, 3), "", "", fmt.Sprintf("%.3f", best.Threshold)})
	t.Render()
}
