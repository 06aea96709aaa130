package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	pv "github.com/jamesainslie/go-pv"
	"github.com/jamesainslie/go-pv/inference"
	"github.com/jamesainslie/go-pv/internal/backend"
	"github.com/jamesainslie/go-pv/internal/bench"
	"github.com/jamesainslie/go-pv/internal/config"
	"github.com/jamesainslie/go-pv/internal/report"
	"github.com/jamesainslie/go-pv/internal/store"
	"github.com/jamesainslie/go-pv/roboflow"
)

type options struct {
	dataset     string
	predictions string
	splits      []string
	out         string
	db          string
	ortLib      string
	wp, wr      float64
	sweep       bool
	sweepRange  bench.SweepRange
}

func main() {
	var (
		envFile     = flag.String("env", ".env", "Environment file")
		dataset     = flag.String("dataset", "", "Dataset directory (skips download)")
		predictions = flag.String("predictions", "", "Evaluate a saved pred_raw.jsonl instead of running inference")
		splits      = flag.String("splits", strings.Join([]string{"train", "valid", "test"}, ","), "Comma-separated dataset splits")
		out         = flag.String("out", "", "Output directory (default PV_BASE_DIR/outputs)")
		db          = flag.String("db", "", "SQLite run database (default from PV_DB)")
		backendName = flag.String("backend", "", "Backend: hosted or onnx (default from PV_BACKEND)")
		modelID     = flag.String("model-id", "", "Hosted model id (default from PV_MODEL_ID)")
		onnxModel   = flag.String("onnx-model", "", "ONNX model path (default from PV_ONNX_MODEL)")
		ortLib      = flag.String("ort-lib", os.Getenv("ONNXRUNTIME_LIB"), "ONNX Runtime shared library")
		threshold   = flag.Float64("threshold", -1, "Confidence threshold (default from PV_THRESHOLD)")
		workers     = flag.Int("workers", 0, "Concurrent detections (default from PV_WORKERS)")
		wp          = flag.Float64("wp", 1.0, "Precision weight")
		wr          = flag.Float64("wr", 1.0, "Recall weight")
		sweep       = flag.Bool("sweep", false, "Run threshold sweep")
		sweepMin    = flag.Float64("sweep-min", 0.05, "Sweep minimum threshold")
		sweepMax    = flag.Float64("sweep-max", 0.95, "Sweep maximum threshold (exclusive)")
		sweepStep   = flag.Float64("sweep-step", 0.05, "Sweep step size")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if *backendName != "" {
		cfg.Backend = *backendName
	}
	if *modelID != "" {
		cfg.ModelID = *modelID
	}
	if *onnxModel != "" {
		cfg.ONNXModel = *onnxModel
	}
	if *threshold >= 0 {
		cfg.Threshold = *threshold
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *db != "" {
		cfg.DBPath = *db
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	opts := options{
		dataset:     *dataset,
		predictions: *predictions,
		splits:      strings.Split(*splits, ","),
		out:         *out,
		db:          cfg.DBPath,
		ortLib:      *ortLib,
		wp:          *wp,
		wr:          *wr,
		sweep:       *sweep,
		sweepRange:  bench.SweepRange{Min: *sweepMin, Max: *sweepMax, Step: *sweepStep},
	}
	if opts.out == "" {
		opts.out = cfg.OutputDir()
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	out := report.Dir(opts.out)
	if err := out.Ensure(); err != nil {
		return err
	}

	dir := opts.dataset
	if dir == "" {
		var err error
		if dir, err = download(ctx, cfg, logger); err != nil {
			return err
		}
	}

	ds, err := bench.LoadDataset(dir, opts.splits, logger)
	if err != nil {
		return err
	}
	if err := report.WriteObjects(out.Path(report.ObjectsFile), ds.Objects); err != nil {
		return err
	}
	if err := report.WriteGroundTruth(out.Path(report.GroundTruthFile), ds.Images); err != nil {
		return err
	}
	fmt.Printf("Loaded %d images (%d objects) from %s\n\n", len(ds.Images), len(ds.Objects), dir)

	collection, err := collect(ctx, cfg, opts, ds, logger)
	if err != nil {
		return err
	}
	if opts.predictions == "" {
		if err := report.WriteRawJSONL(out.Path(report.RawFile), collection.Inferences); err != nil {
			return err
		}
	}

	ev, err := pv.NewEvaluator(
		pv.WithThreshold(cfg.Threshold),
		pv.WithWeights(opts.wp, opts.wr),
		pv.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	res := bench.Evaluate(ev, ds, collection)
	if err := writeResult(out, res); err != nil {
		return err
	}
	report.RenderMetrics(os.Stdout, res.Metrics, res.FailedImages)

	if opts.sweep {
		results, err := bench.Sweep(ev, ds, collection, opts.sweepRange)
		if err != nil {
			return err
		}
		fmt.Println()
		report.RenderSweep(os.Stdout, results)

		ordered := append([]pv.SweepResult(nil), results...)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Threshold < ordered[j].Threshold })
		if err := report.WriteSweep(out.Path(report.SweepFile), ordered); err != nil {
			return err
		}
	}

	if opts.db != "" {
		if err := save(ctx, cfg, opts, res, logger); err != nil {
			return err
		}
	}

	logger.Info("artifacts written", "dir", opts.out)
	return nil
}

func download(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, error) {
	client, err := backend.Client(cfg, logger)
	if err != nil {
		return "", err
	}
	ref := roboflow.DatasetRef{
		Workspace: cfg.Workspace,
		Project:   cfg.Project,
		Version:   cfg.Version,
	}
	logger.Info("downloading dataset", "workspace", ref.Workspace, "project", ref.Project, "version", ref.Version)
	return client.DownloadDataset(ctx, ref, cfg.DatasetDir())
}

func collect(ctx context.Context, cfg *config.Config, opts options, ds *bench.Dataset, logger *slog.Logger) (*bench.Collection, error) {
	if opts.predictions != "" {
		inferences, err := report.ReadRawJSONL(opts.predictions)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded saved predictions", "path", opts.predictions, "images", len(inferences))
		return bench.FromInferences(ds, inferences), nil
	}

	inference.SetLibraryPath(opts.ortLib)
	det, err := backend.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = det.Close() }()

	runner := bench.NewRunner(det, bench.WithWorkers(cfg.Workers), bench.WithLogger(logger))
	c, err := runner.Collect(ctx, ds)
	if err != nil {
		return nil, err
	}
	if len(c.Failed) > 0 {
		logger.Warn("images excluded after failed detection", "count", len(c.Failed))
	}
	return c, nil
}

func writeResult(out report.Dir, res *bench.Result) error {
	if err := report.WritePredictions(out.Path(report.PredictionsFile), res.Images); err != nil {
		return err
	}
	if err := report.WriteMerged(out.Path(report.MergedFile), res.Images); err != nil {
		return err
	}
	return report.WriteMetrics(out.Path(report.MetricsFile), res.Metrics, res.FailedImages)
}

func save(ctx context.Context, cfg *config.Config, opts options, res *bench.Result, logger *slog.Logger) error {
	s, err := store.Open(opts.db)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	backendName, model := cfg.Backend, cfg.ModelID
	switch {
	case opts.predictions != "":
		backendName = "offline"
	case cfg.Backend == config.BackendONNX:
		model = cfg.ONNXModel
	}
	id, err := s.SaveRun(ctx, &store.Run{
		ModelID:      model,
		Backend:      backendName,
		Threshold:    cfg.Threshold,
		FailedImages: res.FailedImages,
		Metrics:      res.Metrics,
		Images:       res.Images,
	})
	if err != nil {
		return err
	}
	logger.Info("run saved", "id", id, "db", opts.db)
	return nil
}
