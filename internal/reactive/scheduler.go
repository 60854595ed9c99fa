package reactive

import (
	"context"
	"sync"
)

// Scheduler runs deferred work. Cells use it to schedule their flush.
type Scheduler interface {
	Schedule(fn func())
}

// Loop is a Scheduler that runs every scheduled function, in order, on a
// single goroutine. It plays the role of a microtask queue: all reactive
// notifications of an engine are serialized through one Loop.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	running bool
}

// NewLoop creates a Loop. Call Start or Run to begin processing.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Schedule appends fn to the queue. It never blocks.
func (l *Loop) Schedule(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Start runs the loop in a new goroutine until ctx is cancelled.
func (l *Loop) Start(ctx context.Context) {
	go l.Run(ctx)
}

// Run processes scheduled functions until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Sync schedules fn and waits until it has run. It must not be called from
// the loop goroutine itself.
func (l *Loop) Sync(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	l.Schedule(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ManualScheduler queues work until Drain is called. Useful for deterministic tests.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

// Schedule implements Scheduler.
func (m *ManualScheduler) Schedule(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
}

// Pending returns the number of queued functions.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Drain runs queued functions, including ones scheduled while draining,
// until the queue is empty.
func (m *ManualScheduler) Drain() {
	for {
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		m.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}
