package pv

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

// Detector runs object detection on one image file.
type Detector interface {
	Detect(ctx context.Context, imageID, path string) (*Inference, error)
}

// Inference is the detector output for one image.
type Inference struct {
	ImageID    string
	Detections []Detection
	Skipped    int              // raw predictions that could not be decoded
	Raw        *structpb.Struct // backend response in the hosted API shape
}
