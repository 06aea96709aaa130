package coco

import (
	"fmt"
	"path/filepath"

	pv "github.com/jamesainslie/go-pv"
)

// Split is the parsed annotation file of one dataset split.
type Split struct {
	Name string
	Dir  string
	File *File
}

// ImageID returns the dataset-wide identifier of an image. COCO ids restart
// in every split, so the split name and file name are used instead.
func ImageID(split, fileName string) string {
	return split + "/" + fileName
}

// Object is one annotation joined with its image and category.
type Object struct {
	Split        string
	ImageID      string
	FileName     string
	ImageWidth   int
	ImageHeight  int
	CategoryID   int
	CategoryName string
	XMin         float64
	YMin         float64
	Width        float64
	Height       float64
	AreaPx       float64
	AreaM2       *float64
	CentroidLat  *float64
	CentroidLon  *float64
}

// XMax returns the right edge of the box.
func (o Object) XMax() float64 { return o.XMin + o.Width }

// YMax returns the bottom edge of the box.
func (o Object) YMax() float64 { return o.YMin + o.Height }

// ImageRecord is the image-level ground truth of one image, negatives
// included.
type ImageRecord struct {
	Split       string
	ImageID     string
	CocoID      int
	FileName    string
	ImageWidth  int
	ImageHeight int
	NumBoxes    int
	AreaPx      float64
	AreaM2      float64
}

// HasPV reports whether the image carries at least one annotation.
func (r ImageRecord) HasPV() bool {
	return r.NumBoxes > 0
}

// GroundTruth converts the record for evaluation.
func (r ImageRecord) GroundTruth() pv.ImageGroundTruth {
	return pv.ImageGroundTruth{
		ImageID: r.ImageID,
		HasPV:   r.HasPV(),
		Area:    r.AreaPx,
	}
}

// Path returns the image file path.
func (s *Split) Path(fileName string) string {
	return filepath.Join(s.Dir, fileName)
}

// Objects returns object-level annotations. Annotations that reference an
// unknown image are skipped and counted.
func (s *Split) Objects() (objects []Object, orphans int) {
	images := s.imagesByID()
	categories := make(map[int]string, len(s.File.Categories))
	for _, c := range s.File.Categories {
		categories[c.ID] = c.Name
	}

	for _, ann := range s.File.Annotations {
		img, ok := images[ann.ImageID]
		if !ok {
			orphans++
			continue
		}

		name, ok := categories[ann.CategoryID]
		if !ok {
			name = fmt.Sprintf("class_%d", ann.CategoryID)
		}

		obj := Object{
			Split:        s.Name,
			ImageID:      ImageID(s.Name, img.FileName),
			FileName:     img.FileName,
			ImageWidth:   img.Width,
			ImageHeight:  img.Height,
			CategoryID:   ann.CategoryID,
			CategoryName: name,
			XMin:         ann.BBox[0],
			YMin:         ann.BBox[1],
			Width:        ann.BBox[2],
			Height:       ann.BBox[3],
			AreaPx:       ann.AreaPx(),
		}
		if attrs := ann.Attributes; attrs != nil {
			obj.AreaM2 = attrs.AreaM2
			obj.CentroidLat = attrs.CentroidLat
			obj.CentroidLon = attrs.CentroidLon
		}
		objects = append(objects, obj)
	}

	return objects, orphans
}

// Images returns image-level ground truth for every image of the split, in
// file order. Images without annotations are negatives.
func (s *Split) Images() []ImageRecord {
	type totals struct {
		boxes  int
		areaPx float64
		areaM2 float64
	}
	byImage := make(map[int]*totals, len(s.File.Images))
	for _, ann := range s.File.Annotations {
		t, ok := byImage[ann.ImageID]
		if !ok {
			t = &totals{}
			byImage[ann.ImageID] = t
		}
		t.boxes++
		t.areaPx += ann.AreaPx()
		if ann.Attributes != nil && ann.Attributes.AreaM2 != nil {
			t.areaM2 += *ann.Attributes.AreaM2
		}
	}

	records := make([]ImageRecord, 0, len(s.File.Images))
	for _, img := range s.File.Images {
		r := ImageRecord{
			Split:       s.Name,
			ImageID:     ImageID(s.Name, img.FileName),
			CocoID:      img.ID,
			FileName:    img.FileName,
			ImageWidth:  img.Width,
			ImageHeight: img.Height,
		}
		if t, ok := byImage[img.ID]; ok {
			r.NumBoxes = t.boxes
			r.AreaPx = t.areaPx
			r.AreaM2 = t.areaM2
		}
		records = append(records, r)
	}
	return records
}

func (s *Split) imagesByID() map[int]Image {
	images := make(map[int]Image, len(s.File.Images))
	for _, img := range s.File.Images {
		images[img.ID] = img
	}
	return images
}
