package bench

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	pv "github.com/jamesainslie/go-pv"
)

// Runner sends every dataset image through a detector.
type Runner struct {
	detector pv.Detector
	workers  int
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers bounds the number of concurrent detections
// (default: runtime.NumCPU()).
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner around detector.
func NewRunner(detector pv.Detector, opts ...RunnerOption) *Runner {
	r := &Runner{
		detector: detector,
		workers:  runtime.NumCPU(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Collection is the detector output for a dataset.
type Collection struct {
	Inferences []*pv.Inference // in dataset image order, failed images left out
	Failed     []string        // image IDs whose detection failed
}

// Detections flattens all inferences.
func (c *Collection) Detections() []pv.Detection {
	return lo.FlatMap(c.Inferences, func(inf *pv.Inference, _ int) []pv.Detection {
		return inf.Detections
	})
}

// Skipped is the number of undecodable raw predictions.
func (c *Collection) Skipped() int {
	return lo.SumBy(c.Inferences, func(inf *pv.Inference) int { return inf.Skipped })
}

// Collect detects every image of ds. A failed image is logged and recorded
// in Failed; only context cancellation aborts the run.
func (r *Runner) Collect(ctx context.Context, ds *Dataset) (*Collection, error) {
	results := make([]*pv.Inference, len(ds.Images))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, img := range ds.Images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			inf, err := r.detector.Detect(ctx, img.ImageID, ds.Path(img))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Warn("detection failed", "image", img.ImageID, "error", err)
				return nil
			}
			results[i] = inf

			if n := done.Add(1); n%100 == 0 {
				r.logger.Info("progress", "done", n, "total", len(ds.Images))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Collection{}
	for i, inf := range results {
		if inf == nil {
			c.Failed = append(c.Failed, ds.Images[i].ImageID)
			continue
		}
		if inf.ImageID == "" {
			inf.ImageID = ds.Images[i].ImageID
		}
		c.Inferences = append(c.Inferences, inf)
	}
	return c, nil
}

// FromInferences arranges previously collected inferences in dataset
// order. Dataset images without an inference are recorded as failed;
// inferences for unknown images are kept so evaluation can count them.
func FromInferences(ds *Dataset, inferences []*pv.Inference) *Collection {
	byID := lo.KeyBy(inferences, func(inf *pv.Inference) string { return inf.ImageID })
	known := make(map[string]bool, len(ds.Images))

	c := &Collection{}
	for _, img := range ds.Images {
		known[img.ImageID] = true
		inf, ok := byID[img.ImageID]
		if !ok {
			c.Failed = append(c.Failed, img.ImageID)
			continue
		}
		c.Inferences = append(c.Inferences, inf)
	}
	for _, inf := range inferences {
		if !known[inf.ImageID] {
			c.Inferences = append(c.Inferences, inf)
		}
	}
	return c
}
