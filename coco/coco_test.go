package coco

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	pv "github.com/jamesainslie/go-pv"
)

const testAnnotations = `{
  "images": [
    {"id": 0, "file_name": "a.jpg", "width": 640, "height": 640},
    {"id": 1, "file_name": "b.jpg", "width": 640, "height": 480},
    {"id": 2, "file_name": "neg.jpg", "width": 320, "height": 320}
  ],
  "categories": [{"id": 0, "name": "solar"}],
  "annotations": [
    {"id": 1, "image_id": 0, "category_id": 0, "bbox": [10, 20, 30, 40], "area": 1000,
     "attributes": {"area_m2": 12.5, "centroid_lat": 48.1, "centroid_lon": 11.5}},
    {"id": 2, "image_id": 0, "category_id": 0, "bbox": [0, 0, 5, 4]},
    {"id": 3, "image_id": 1, "category_id": 7, "bbox": [1, 1, 10, 10], "area": 100},
    {"id": 4, "image_id": 99, "category_id": 0, "bbox": [1, 1, 1, 1]}
  ]
}`

func writeSplit(t *testing.T, dir, split, content string) {
	t.Helper()
	splitDir := filepath.Join(dir, split)
	if err := os.MkdirAll(splitDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(splitDir, AnnotationsFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write annotations: %v", err)
	}
}

func TestLoadSplit_NotFound(t *testing.T) {
	_, err := LoadSplit(t.TempDir(), "valid")
	if !errors.Is(err, ErrSplitNotFound) {
		t.Fatalf("LoadSplit() error = %v, want ErrSplitNotFound", err)
	}
}

func TestLoadSplit_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, "train", "{not json")

	if _, err := LoadSplit(dir, "train"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSplit_Images(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, "train", testAnnotations)

	s, err := LoadSplit(dir, "train")
	if err != nil {
		t.Fatalf("LoadSplit() error = %v", err)
	}

	want := []ImageRecord{
		{Split: "train", ImageID: "train/a.jpg", CocoID: 0, FileName: "a.jpg", ImageWidth: 640, ImageHeight: 640, NumBoxes: 2, AreaPx: 1020, AreaM2: 12.5},
		{Split: "train", ImageID: "train/b.jpg", CocoID: 1, FileName: "b.jpg", ImageWidth: 640, ImageHeight: 480, NumBoxes: 1, AreaPx: 100},
		{Split: "train", ImageID: "train/neg.jpg", CocoID: 2, FileName: "neg.jpg", ImageWidth: 320, ImageHeight: 320},
	}
	got := s.Images()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Images() mismatch (-want +got):\n%s", diff)
	}

	gt := got[2].GroundTruth()
	if gt != (pv.ImageGroundTruth{ImageID: "train/neg.jpg"}) {
		t.Errorf("negative GroundTruth() = %+v", gt)
	}
	if !got[0].HasPV() {
		t.Error("expected first image to have PV")
	}
}

func TestSplit_Objects(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, "test", testAnnotations)

	s, err := LoadSplit(dir, "test")
	if err != nil {
		t.Fatalf("LoadSplit() error = %v", err)
	}

	objects, orphans := s.Objects()
	if orphans != 1 {
		t.Errorf("orphans = %d, want 1", orphans)
	}
	if len(objects) != 3 {
		t.Fatalf("got %d objects, want 3", len(objects))
	}

	first := objects[0]
	if first.ImageID != "test/a.jpg" || first.CategoryName != "solar" {
		t.Errorf("first object = %+v", first)
	}
	if first.XMax() != 40 || first.YMax() != 60 {
		t.Errorf("XMax, YMax = %v, %v, want 40, 60", first.XMax(), first.YMax())
	}
	if first.AreaM2 == nil || *first.AreaM2 != 12.5 {
		t.Errorf("AreaM2 = %v, want 12.5", first.AreaM2)
	}
	if objects[1].AreaPx != 20 {
		t.Errorf("bbox fallback area = %v, want 20", objects[1].AreaPx)
	}
	if objects[2].CategoryName != "class_7" {
		t.Errorf("unknown category name = %q, want class_7", objects[2].CategoryName)
	}
	if got := s.Path("a.jpg"); got != filepath.Join(dir, "test", "a.jpg") {
		t.Errorf("Path() = %q", got)
	}
}
