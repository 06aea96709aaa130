// Package bench runs the PV detection pipeline over a COCO dataset: ground
// truth extraction, concurrent inference, evaluation and threshold sweeps.
package bench

import (
	"errors"
	"fmt"
	"log/slog"

	pv "github.com/jamesainslie/go-pv"
	"github.com/jamesainslie/go-pv/coco"
)

// ErrNoSplits indicates that none of the requested splits could be loaded.
var ErrNoSplits = errors.New("bench: no dataset splits found")

// Dataset is the ground truth of every loaded split.
type Dataset struct {
	Dir     string
	Splits  []*coco.Split
	Objects []coco.Object      // object level, annotations joined with images
	Images  []coco.ImageRecord // image level, negatives included
	Orphans int                // annotations referencing unknown images
}

// LoadDataset reads the given splits under dir. Missing splits are logged
// and skipped.
func LoadDataset(dir string, splits []string, logger *slog.Logger) (*Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(splits) == 0 {
		splits = coco.Splits
	}

	ds := &Dataset{Dir: dir}
	for _, name := range splits {
		s, err := coco.LoadSplit(dir, name)
		if errors.Is(err, coco.ErrSplitNotFound) {
			logger.Warn("split not found, skipping", "split", name, "dir", dir)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading split %s: %w", name, err)
		}

		objects, orphans := s.Objects()
		images := s.Images()
		ds.Splits = append(ds.Splits, s)
		ds.Objects = append(ds.Objects, objects...)
		ds.Images = append(ds.Images, images...)
		ds.Orphans += orphans

		logger.Info("loaded split",
			"split", name,
			"images", len(images),
			"objects", len(objects))
	}

	if len(ds.Splits) == 0 {
		return nil, fmt.Errorf("%w: %v in %s", ErrNoSplits, splits, dir)
	}
	if ds.Orphans > 0 {
		logger.Warn("annotations without image", "count", ds.Orphans)
	}
	return ds, nil
}

// Path returns the file path of an image record.
func (d *Dataset) Path(r coco.ImageRecord) string {
	for _, s := range d.Splits {
		if s.Name == r.Split {
			return s.Path(r.FileName)
		}
	}
	return ""
}

// GroundTruth returns the image-level labels, leaving out the given image IDs.
func (d *Dataset) GroundTruth(exclude ...string) []pv.ImageGroundTruth {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	truth := make([]pv.ImageGroundTruth, 0, len(d.Images))
	for _, r := range d.Images {
		if skip[r.ImageID] {
			continue
		}
		truth = append(truth, r.GroundTruth())
	}
	return truth
}
