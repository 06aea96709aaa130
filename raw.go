package pv

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// PredictionsStruct encodes detections in the hosted inference response
// shape: {"predictions": [{x, y, width, height, confidence, class, class_id}]}.
func PredictionsStruct(detections []Detection) (*structpb.Struct, error) {
	preds := make([]any, 0, len(detections))
	for _, d := range detections {
		preds = append(preds, map[string]any{
			"x":          d.X,
			"y":          d.Y,
			"width":      d.Width,
			"height":     d.Height,
			"confidence": d.Confidence,
			"class":      d.Class,
			"class_id":   d.ClassID,
		})
	}

	s, err := structpb.NewStruct(map[string]any{"predictions": preds})
	if err != nil {
		return nil, fmt.Errorf("encoding predictions: %w", err)
	}
	return s, nil
}

// DetectionsFromStruct decodes the predictions of a hosted-shape response
// and tags them with imageID. Entries missing x, y, width, height or
// confidence, or carrying malformed values, are skipped and counted.
func DetectionsFromStruct(imageID string, s *structpb.Struct) (detections []Detection, skipped int) {
	list := s.GetFields()["predictions"].GetListValue()

	for _, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			skipped++
			continue
		}

		x, okX := numberField(fields, "x")
		y, okY := numberField(fields, "y")
		w, okW := numberField(fields, "width")
		h, okH := numberField(fields, "height")
		conf, okC := numberField(fields, "confidence")
		if !okX || !okY || !okW || !okH || !okC {
			skipped++
			continue
		}

		d := Detection{
			ImageID:    imageID,
			X:          x,
			Y:          y,
			Width:      w,
			Height:     h,
			Confidence: conf,
			Class:      fields["class"].GetStringValue(),
		}
		if id, ok := numberField(fields, "class_id"); ok {
			d.ClassID = int(id)
		}
		if !d.Valid() {
			skipped++
			continue
		}
		detections = append(detections, d)
	}

	return detections, skipped
}

func numberField(fields map[string]*structpb.Value, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}
