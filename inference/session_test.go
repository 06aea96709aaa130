package inference

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

const testModel = "../testdata/pv.onnx"

// requireModel skips unless the PV model export and ONNX Runtime are both
// available.
func requireModel(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testModel); err != nil {
		t.Skipf("Skipping: model not available at %s", testModel)
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	requireModel(t)

	s, err := NewSession(testModel)
	if err != nil {
		if isORTUnavailableError(err) {
			t.Skipf("Skipping: ONNX runtime not available: %v", err)
		}
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func TestNewSession_FileNotFound(t *testing.T) {
	_, err := NewSession("../testdata/nonexistent.onnx")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got: %v", err)
	}
}

func TestSession_Infer(t *testing.T) {
	s := newTestSession(t)
	defer func() { _ = s.Close() }()

	size := defaultInputSize
	input := make([]float32, 3*size*size)

	out, shape, err := s.Infer(context.Background(), input, size)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if len(shape) != 3 || shape[1] < 5 {
		t.Fatalf("unexpected output shape %v", shape)
	}
	if int64(len(out)) != shape[0]*shape[1]*shape[2] {
		t.Errorf("got %d values for shape %v", len(out), shape)
	}
}

func TestSession_Infer_ContextDone(t *testing.T) {
	s := newTestSession(t)
	defer func() { _ = s.Close() }()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		want error
	}{
		{name: "cancelled", ctx: cancelled, want: context.Canceled},
		{name: "expired", ctx: expired, want: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Infer(tt.ctx, make([]float32, 3*32*32), 32)
			if !errors.Is(err, tt.want) {
				t.Errorf("Infer() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSession_Close(t *testing.T) {
	s := newTestSession(t)

	if err := s.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	_, _, err := s.Infer(context.Background(), make([]float32, 3*32*32), 32)
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Infer after Close error = %v, want ErrSessionClosed", err)
	}
}

// isORTUnavailableError checks if the error indicates ONNX runtime is not available.
func isORTUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, hint := range []string{
		"onnxruntime", "shared library", "dylib", ".so", ".dll",
		"not found", "cannot open", "initializing ONNX runtime",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
