package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pool holds ready detection sessions so concurrent images do not each pay
// the model load cost. Workers borrow a session per image.
type Pool struct {
	sessions chan *Session
	size     int

	mu     sync.Mutex
	closed bool
}

// NewPool loads size sessions of the model at modelPath. A size below one
// is treated as one.
func NewPool(modelPath string, size int) (*Pool, error) {
	size = max(size, 1)

	p := &Pool{
		sessions: make(chan *Session, size),
		size:     size,
	}

	for i := range size {
		s, err := NewSession(modelPath)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("loading session %d of %d: %w", i+1, size, err)
		}
		p.sessions <- s
	}

	return p, nil
}

// Acquire borrows a session, blocking until one is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	select {
	case s, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release hands a borrowed session back. Sessions released after Close are
// destroyed.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = s.Close()
		return
	}

	select {
	case p.sessions <- s:
	default:
		_ = s.Close()
	}
}

// Run borrows a session for the duration of fn.
func (p *Pool) Run(ctx context.Context, fn func(*Session) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(s)
	return fn(s)
}

// Idle reports how many sessions are waiting to be borrowed.
func (p *Pool) Idle() int {
	return len(p.sessions)
}

// Size returns the number of sessions the pool was built with.
func (p *Pool) Size() int {
	return p.size
}

// Close destroys every idle session. Borrowed sessions are destroyed on
// Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sessions)
	p.mu.Unlock()

	var errs []error
	for s := range p.sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
