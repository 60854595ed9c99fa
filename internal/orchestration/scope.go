package orchestration

import (
	"context"
	"sync"
)

// Scope runs at most one task at a time. Starting a task cancels the
// previous one and waits for it to return before the new one begins.
type Scope struct {
	parent context.Context

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewScope returns a Scope whose tasks derive their context from parent.
func NewScope(parent context.Context) *Scope {
	return &Scope{parent: parent}
}

// Go cancels the running task, if any, and starts fn in a new goroutine once
// that task has returned. fn always runs, possibly with an already cancelled
// context. Go returns false if the scope is closed.
func (s *Scope) Go(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	prevCancel, prevDone := s.cancel, s.done
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	go func() {
		defer close(done)
		defer cancel()
		if prevDone != nil {
			<-prevDone
		}
		fn(ctx)
	}()
	return true
}

// Close cancels the running task, waits for it to return and rejects any
// further Go calls.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
