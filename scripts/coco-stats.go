//go:build ignore

// Print per-split statistics of an exported COCO dataset: image counts,
// positive/negative balance and annotated area.
// Usage: go run ./scripts/coco-stats.go -dataset data/dataset
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/jamesainslie/go-pv/coco"
)

func main() {
	dir := flag.String("dataset", "data/dataset", "Dataset directory")
	flag.Parse()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Split", "Images", "Positive", "Negative", "Boxes", "Orphans", "Mean area (px²)", "Median area (px²)", "Area (m²)"})

	found := 0
	for _, name := range coco.Splits {
		s, err := coco.LoadSplit(*dir, name)
		if errors.Is(err, coco.ErrSplitNotFound) {
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", name, err)
			os.Exit(1)
		}
		found++

		images := s.Images()
		objects, orphans := s.Objects()
		positive := lo.CountBy(images, func(r coco.ImageRecord) bool { return r.HasPV() })

		areas := lo.Map(objects, func(o coco.Object, _ int) float64 { return o.AreaPx })
		mean, median := "-", "-"
		if len(areas) > 0 {
			mean = fmt.Sprintf("%.0f", stat.Mean(areas, nil))
			sorted := append([]float64(nil), areas...)
			sort.Float64s(sorted)
			median = fmt.Sprintf("%.0f", stat.Quantile(0.5, stat.Empirical, sorted, nil))
		}
		m2 := lo.SumBy(images, func(r coco.ImageRecord) float64 { return r.AreaM2 })

		t.AppendRow(table.Row{
			name, len(images), positive, len(images) - positive,
			len(objects), orphans, mean, median, fmt.Sprintf("%.1f", m2),
		})
	}

	if found == 0 {
		fmt.Fprintf(os.Stderr, "No splits found in %s\n", *dir)
		os.Exit(1)
	}
	t.Render()
}
