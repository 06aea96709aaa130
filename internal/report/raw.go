package report

import (
	"bufio"
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	pv "github.com/jamesainslie/go-pv"
)

const maxRawLine = 16 << 20

// WriteRawJSONL writes one protojson record per image:
// {"image_id": ..., "response": {...}}. Inferences without a raw response
// are encoded from their detections.
func WriteRawJSONL(path string, inferences []*pv.Inference) error {
	return create(path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		for _, inf := range inferences {
			raw := inf.Raw
			if raw == nil {
				var err error
				if raw, err = pv.PredictionsStruct(inf.Detections); err != nil {
					return err
				}
			}

			rec := &structpb.Struct{Fields: map[string]*structpb.Value{
				"image_id": structpb.NewStringValue(inf.ImageID),
				"response": structpb.NewStructValue(raw),
			}}
			line, err := protojson.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", inf.ImageID, err)
			}
			if _, err := w.Write(append(line, '\n')); err != nil {
				return err
			}
		}
		return w.Flush()
	})
}

// ReadRawJSONL loads records written by WriteRawJSONL and decodes their
// predictions. Blank lines are ignored.
func ReadRawJSONL(path string) ([]*pv.Inference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raw predictions: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []*pv.Inference
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxRawLine)
	for n := 1; sc.Scan(); n++ {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec structpb.Struct
		if err := protojson.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		fields := rec.GetFields()
		id := fields["image_id"].GetStringValue()
		if id == "" {
			return nil, fmt.Errorf("%s:%d: missing image_id", path, n)
		}

		raw := fields["response"].GetStructValue()
		dets, skipped := pv.DetectionsFromStruct(id, raw)
		out = append(out, &pv.Inference{
			ImageID:    id,
			Detections: dets,
			Skipped:    skipped,
			Raw:        raw,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading raw predictions: %w", err)
	}
	return out, nil
}
