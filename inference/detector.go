package inference

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"

	"github.com/disintegration/imaging"

	pv "github.com/jamesainslie/go-pv"
)

const (
	defaultInputSize     = 640
	defaultMinConfidence = 0.05
	defaultIoU           = 0.45
)

// DetectorOption configures a Detector.
type DetectorOption func(*detectorConfig)

type detectorConfig struct {
	inputSize     int
	minConfidence float64
	iou           float64
	classes       []string
	poolSize      int
	logger        *slog.Logger
}

// WithInputSize sets the square model input side (default: 640).
func WithInputSize(n int) DetectorOption {
	return func(c *detectorConfig) {
		if n > 0 {
			c.inputSize = n
		}
	}
}

// WithMinConfidence drops raw boxes below c before NMS (default: 0.05).
// Evaluation applies its own threshold afterwards.
func WithMinConfidence(c float64) DetectorOption {
	return func(cfg *detectorConfig) {
		cfg.minConfidence = c
	}
}

// WithIoU sets the NMS overlap threshold (default: 0.45).
func WithIoU(t float64) DetectorOption {
	return func(c *detectorConfig) {
		c.iou = t
	}
}

// WithClasses names the model classes by index.
func WithClasses(names ...string) DetectorOption {
	return func(c *detectorConfig) {
		c.classes = names
	}
}

// WithPoolSize sets the session pool size (default: runtime.NumCPU()).
func WithPoolSize(n int) DetectorOption {
	return func(c *detectorConfig) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) DetectorOption {
	return func(c *detectorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Detector implements pv.Detector over a local ONNX model.
// It is safe for concurrent use.
type Detector struct {
	pool   *Pool
	cfg    detectorConfig
	logger *slog.Logger
}

// NewDetector loads the model at modelPath.
func NewDetector(modelPath string, opts ...DetectorOption) (*Detector, error) {
	cfg := detectorConfig{
		inputSize:     defaultInputSize,
		minConfidence: defaultMinConfidence,
		iou:           defaultIoU,
		poolSize:      runtime.NumCPU(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := NewPool(modelPath, cfg.poolSize)
	if err != nil {
		return nil, err
	}

	return &Detector{pool: pool, cfg: cfg, logger: cfg.logger}, nil
}

// Detect implements pv.Detector.
func (d *Detector) Detect(ctx context.Context, imageID, path string) (*pv.Inference, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}

	size := d.cfg.inputSize
	input := tensorFromImage(img, size)
	b := img.Bounds()
	scaleX := float64(b.Dx()) / float64(size)
	scaleY := float64(b.Dy()) / float64(size)

	var (
		out   []float32
		shape []int64
	)
	err = d.pool.Run(ctx, func(s *Session) error {
		var err error
		out, shape, err = s.Infer(ctx, input, size)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inference on %s: %w", path, err)
	}

	dets, err := decode(out, shape, scaleX, scaleY, d.cfg.minConfidence, d.cfg.classes)
	if err != nil {
		return nil, err
	}
	dets = nms(dets, d.cfg.iou)
	for i := range dets {
		dets[i].ImageID = imageID
	}

	raw, err := pv.PredictionsStruct(dets)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("detected", "image", imageID, "boxes", len(dets))
	return &pv.Inference{
		ImageID:    imageID,
		Detections: dets,
		Raw:        raw,
	}, nil
}

// Close releases the session pool.
func (d *Detector) Close() error {
	return d.pool.Close()
}

// tensorFromImage resizes img to size×size and lays it out as NCHW RGB
// scaled to [0, 1].
func tensorFromImage(img image.Image, size int) []float32 {
	resized := imaging.Resize(img, size, size, imaging.Linear)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			p := row[x*4:]
			out[i] = float32(p[0]) / 255.0
			out[plane+i] = float32(p[1]) / 255.0
			out[2*plane+i] = float32(p[2]) / 255.0
		}
	}
	return out
}
