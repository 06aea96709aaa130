package inference

import "errors"

var (
	// ErrPoolClosed indicates the session pool has been closed.
	ErrPoolClosed = errors.New("inference: session pool closed")

	// ErrSessionClosed indicates inference on a closed session.
	ErrSessionClosed = errors.New("inference: session closed")

	// ErrUnexpectedOutput indicates a model output that is not a YOLO
	// detection head.
	ErrUnexpectedOutput = errors.New("inference: unexpected model output")
)
