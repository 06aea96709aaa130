package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"

	pv "github.com/jamesainslie/go-pv"
	"github.com/jamesainslie/go-pv/inference"
	"github.com/jamesainslie/go-pv/internal/backend"
	"github.com/jamesainslie/go-pv/internal/config"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file")
	imagePath := flag.String("image", "", "Image to run detection on (required)")
	backendName := flag.String("backend", "", "Backend: hosted or onnx (default from PV_BACKEND)")
	modelID := flag.String("model-id", "", "Hosted model id (default from PV_MODEL_ID)")
	onnxModel := flag.String("onnx-model", "", "ONNX model path (default from PV_ONNX_MODEL)")
	ortLib := flag.String("ort-lib", os.Getenv("ONNXRUNTIME_LIB"), "ONNX Runtime shared library")
	threshold := flag.Float64("threshold", -1, "Confidence threshold (default from PV_THRESHOLD)")

	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: pv-cli -image PATH [OPTIONS]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
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
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	inference.SetLibraryPath(*ortLib)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *imagePath, backend.Open, logger, os.Stdout); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openFunc builds a detector from config.
type openFunc func(*config.Config, *slog.Logger) (backend.Detector, error)

// run detects PV on one image and prints the result to w. The detector is
// closed before run returns.
func run(ctx context.Context, cfg *config.Config, imagePath string, open openFunc, logger *slog.Logger, w io.Writer) error {
	det, err := open(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating detector: %w", err)
	}
	defer func() { _ = det.Close() }() // Cleanup error ignored in CLI

	id := filepath.Base(imagePath)
	inf, err := det.Detect(ctx, id, imagePath)
	if err != nil {
		return err
	}

	pred := pv.Aggregate(inf.Detections, cfg.Threshold).Predictions[id]

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Class", "Confidence", "Center", "Size", "Area (px²)", ""})
	for i, d := range inf.Detections {
		mark := ""
		if d.Confidence > cfg.Threshold {
			mark = "✓"
		}
		t.AppendRow(table.Row{
			i + 1, d.Class, fmt.Sprintf("%.3f", d.Confidence),
			fmt.Sprintf("%.0f, %.0f", d.X, d.Y),
			fmt.Sprintf("%.0f × %.0f", d.Width, d.Height),
			fmt.Sprintf("%.0f", d.Area()), mark,
		})
	}
	t.Render()

	fmt.Fprintf(w, "Image: %s\n", imagePath)
	fmt.Fprintf(w, "Has PV: %v (threshold %.2f)\n", pred.HasPV, cfg.Threshold)
	fmt.Fprintf(w, "Predicted area: %.0f px²\n", pred.Area)
	if inf.Skipped > 0 {
		fmt.Fprintf(w, "Skipped malformed predictions: %d\n", inf.Skipped)
	}
	return nil
}
