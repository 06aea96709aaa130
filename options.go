package pv

import (
	"log/slog"
)

// DefaultThreshold is the confidence a detection must exceed to count.
const DefaultThreshold = 0.5

// Option configures an Evaluator.
type Option func(*config)

type config struct {
	threshold       float64
	precisionWeight float64
	recallWeight    float64
	logger          *slog.Logger
}

func defaultConfig() config {
	return config{
		threshold:       DefaultThreshold,
		precisionWeight: 1.0,
		recallWeight:    1.0,
		logger:          slog.Default(),
	}
}

// WithThreshold sets the detection confidence threshold (default: 0.5).
func WithThreshold(t float64) Option {
	return func(c *config) {
		c.threshold = t
	}
}

// WithWeights sets the precision and recall weights of the weighted score
// (default: 1.0 each).
func WithWeights(precision, recall float64) Option {
	return func(c *config) {
		c.precisionWeight = precision
		c.recallWeight = recall
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
