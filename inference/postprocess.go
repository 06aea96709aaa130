package inference

import (
	"fmt"
	"math"
	"sort"

	pv "github.com/jamesainslie/go-pv"
)

// decode reads a YOLOv8-style detection head of shape [1, 4+C, N]: rows
// 0-3 hold box center x, center y, width and height in input pixels, the
// remaining C rows hold class scores. Boxes are scaled back to the source
// image with scaleX and scaleY.
func decode(data []float32, shape []int64, scaleX, scaleY float64, minConf float64, classes []string) ([]pv.Detection, error) {
	if len(shape) != 3 || shape[0] != 1 || shape[1] < 5 {
		return nil, fmt.Errorf("%w: shape %v", ErrUnexpectedOutput, shape)
	}
	rows, n := int(shape[1]), int(shape[2])
	if len(data) < rows*n {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrUnexpectedOutput, len(data), shape)
	}
	numClasses := rows - 4

	var dets []pv.Detection
	for i := 0; i < n; i++ {
		bestClass, bestScore := 0, float32(-1)
		for c := 0; c < numClasses; c++ {
			if s := data[(4+c)*n+i]; s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if float64(bestScore) < minConf {
			continue
		}

		d := pv.Detection{
			X:          float64(data[i]) * scaleX,
			Y:          float64(data[n+i]) * scaleY,
			Width:      float64(data[2*n+i]) * scaleX,
			Height:     float64(data[3*n+i]) * scaleY,
			Confidence: math.Min(float64(bestScore), 1),
			ClassID:    bestClass,
		}
		if bestClass < len(classes) {
			d.Class = classes[bestClass]
		}
		dets = append(dets, d)
	}
	return dets, nil
}

// nms keeps the most confident box among same-class boxes overlapping by
// more than iouThreshold.
func nms(dets []pv.Detection, iouThreshold float64) []pv.Detection {
	sorted := append([]pv.Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	suppressed := make([]bool, len(sorted))
	var kept []pv.Detection
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].ClassID != sorted[i].ClassID {
				continue
			}
			if iou(sorted[i], sorted[j]) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// iou computes intersection over union of two center-format boxes.
func iou(a, b pv.Detection) float64 {
	ax1, ay1 := a.X-a.Width/2, a.Y-a.Height/2
	ax2, ay2 := a.X+a.Width/2, a.Y+a.Height/2
	bx1, by1 := b.X-b.Width/2, b.Y-b.Height/2
	bx2, by2 := b.X+b.Width/2, b.Y+b.Height/2

	iw := math.Min(ax2, bx2) - math.Max(ax1, bx1)
	ih := math.Min(ay2, by2) - math.Max(ay1, by1)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
