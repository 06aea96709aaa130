package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	requireModel(t)

	p, err := NewPool(testModel, size)
	if err != nil {
		if isORTUnavailableError(err) {
			t.Skipf("Skipping: ONNX runtime not available: %v", err)
		}
		t.Fatalf("NewPool failed: %v", err)
	}
	return p
}

func TestNewPool_Size(t *testing.T) {
	tests := []struct {
		size, want int
	}{
		{size: 0, want: 1},
		{size: -5, want: 1},
		{size: 2, want: 2},
	}

	for _, tt := range tests {
		p := newTestPool(t, tt.size)
		if got := p.Size(); got != tt.want {
			t.Errorf("NewPool(%d).Size() = %d, want %d", tt.size, got, tt.want)
		}
		if got := p.Idle(); got != tt.want {
			t.Errorf("NewPool(%d).Idle() = %d, want %d", tt.size, got, tt.want)
		}
		_ = p.Close()
	}
}

func TestNewPool_ModelNotFound(t *testing.T) {
	if _, err := NewPool("../testdata/nonexistent.onnx", 2); err == nil {
		t.Error("expected error for non-existent model file")
	}
}

func TestPool_AcquireRelease(t *testing.T) {
	p := newTestPool(t, 2)
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	s1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire 1 failed: %v", err)
	}
	s2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire 2 failed: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	p.Release(s1)
	p.Release(nil)
	if got := p.Idle(); got != 1 {
		t.Errorf("Idle() = %d, want 1", got)
	}
	p.Release(s2)
}

func TestPool_Run(t *testing.T) {
	p := newTestPool(t, 1)
	defer func() { _ = p.Close() }()

	sentinel := errors.New("boom")
	err := p.Run(context.Background(), func(s *Session) error {
		if p.Idle() != 0 {
			t.Error("session not borrowed during Run")
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Run() error = %v, want %v", err, sentinel)
	}
	if p.Idle() != 1 {
		t.Error("session not returned after Run")
	}
}

func TestPool_Close(t *testing.T) {
	p := newTestPool(t, 1)

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Destroyed rather than returned.
	p.Release(s)

	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Acquire after Close error = %v, want ErrPoolClosed", err)
	}
}

func TestPool_ConcurrentAccess(t *testing.T) {
	p := newTestPool(t, 3)
	defer func() { _ = p.Close() }()

	var wg sync.WaitGroup
	var ok, timeouts atomic.Int64

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				err := p.Run(ctx, func(*Session) error {
					time.Sleep(time.Millisecond)
					return nil
				})
				cancel()
				if err != nil {
					timeouts.Add(1)
					continue
				}
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() == 0 {
		t.Error("expected at least some successful acquire/release cycles")
	}
	t.Logf("concurrent test: %d ok, %d timeouts", ok.Load(), timeouts.Load())
}
