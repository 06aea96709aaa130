// Package report writes run artifacts and renders console summaries.
package report

import (
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names inside the output directory.
const (
	ObjectsFile     = "annotations_with_geo.csv"
	GroundTruthFile = "gt_image_level_all_images.csv"
	PredictionsFile = "pred_image_level.csv"
	RawFile         = "pred_raw.jsonl"
	MergedFile      = "gt_pred_image_level_merged_full.csv"
	MetricsFile     = "metrics.json"
	SweepFile       = "sweep.csv"
)

// Dir is an output directory.
type Dir string

// Ensure creates the directory.
func (d Dir) Ensure() error {
	if err := os.MkdirAll(string(d), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	return nil
}

// Path joins name onto the directory.
func (d Dir) Path(name string) string {
	return filepath.Join(string(d), name)
}

// create opens path for writing and hands the file to fn, reporting the
// first of fn's and Close's errors.
func create(path string, fn func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	if err := fn(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
