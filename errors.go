package pv

import "errors"

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrInvalidThreshold indicates a confidence threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("pv: invalid confidence threshold")

	// ErrInvalidWeights indicates negative or all-zero precision/recall weights.
	ErrInvalidWeights = errors.New("pv: invalid precision/recall weights")
)
