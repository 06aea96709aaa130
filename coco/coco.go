// Package coco parses COCO annotation exports into PV ground truth.
package coco

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AnnotationsFile is the annotation file name inside each split directory.
const AnnotationsFile = "_annotations.coco.json"

// Splits lists the dataset splits in processing order.
var Splits = []string{"train", "valid", "test"}

// ErrSplitNotFound indicates a split has no annotation file.
var ErrSplitNotFound = errors.New("coco: split not found")

// File is the subset of a COCO annotation file used for ground truth.
type File struct {
	Images      []Image      `json:"images"`
	Categories  []Category   `json:"categories"`
	Annotations []Annotation `json:"annotations"`
}

// Image is a COCO image entry.
type Image struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Category is a COCO category entry.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Annotation is a COCO object annotation. BBox is [x_min, y_min, w, h].
type Annotation struct {
	ID         int         `json:"id"`
	ImageID    int         `json:"image_id"`
	CategoryID int         `json:"category_id"`
	BBox       [4]float64  `json:"bbox"`
	Area       *float64    `json:"area"`
	Attributes *Attributes `json:"attributes"`
}

// Attributes holds optional geospatial attributes attached by the labeling
// workflow.
type Attributes struct {
	AreaM2      *float64 `json:"area_m2"`
	CentroidLat *float64 `json:"centroid_lat"`
	CentroidLon *float64 `json:"centroid_lon"`
}

// AreaPx returns the annotated area, falling back to the bbox area when the
// export omits it.
func (a Annotation) AreaPx() float64 {
	if a.Area != nil {
		return *a.Area
	}
	return a.BBox[2] * a.BBox[3]
}

// Load reads a COCO annotation file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading annotations: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing annotations %s: %w", path, err)
	}
	return &f, nil
}

// LoadSplit reads the annotation file of one split under datasetDir.
// A missing file yields ErrSplitNotFound.
func LoadSplit(datasetDir, split string) (*Split, error) {
	path := filepath.Join(datasetDir, split, AnnotationsFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSplitNotFound, path)
		}
		return nil, fmt.Errorf("checking annotations: %w", err)
	}

	f, err := Load(path)
	if err != nil {
		return nil, err
	}

	return &Split{
		Name: split,
		Dir:  filepath.Join(datasetDir, split),
		File: f,
	}, nil
}
