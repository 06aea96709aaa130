// Package backend builds the configured detector.
package backend

import (
	"errors"
	"fmt"
	"log/slog"

	pv "github.com/jamesainslie/go-pv"
	"github.com/jamesainslie/go-pv/inference"
	"github.com/jamesainslie/go-pv/internal/config"
	"github.com/jamesainslie/go-pv/roboflow"
)

// ErrUnknown indicates an unsupported backend name.
var ErrUnknown = errors.New("backend: unknown backend")

// Detector is a pv.Detector that may hold resources.
type Detector interface {
	pv.Detector
	Close() error
}

type hosted struct {
	*roboflow.Detector
}

func (hosted) Close() error { return nil }

// Client builds a hosted API client with the configured rate limit.
func Client(cfg *config.Config, logger *slog.Logger) (*roboflow.Client, error) {
	return roboflow.New(cfg.APIKey,
		roboflow.WithRateLimit(cfg.RPS),
		roboflow.WithLogger(logger),
	)
}

// Open builds the detector named by cfg.Backend.
func Open(cfg *config.Config, logger *slog.Logger) (Detector, error) {
	switch cfg.Backend {
	case config.BackendHosted:
		c, err := Client(cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using hosted backend", "model", cfg.ModelID)
		return hosted{c.Detector(cfg.ModelID)}, nil

	case config.BackendONNX:
		if cfg.ONNXModel == "" {
			return nil, fmt.Errorf("%w: no model path", config.ErrInvalid)
		}
		d, err := inference.NewDetector(cfg.ONNXModel,
			inference.WithPoolSize(cfg.Workers),
			inference.WithClasses("solar"),
			inference.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("loading onnx model: %w", err)
		}
		logger.Info("using onnx backend", "model", cfg.ONNXModel, "sessions", cfg.Workers)
		return d, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, cfg.Backend)
	}
}
