// Package orchestration runs guarded, cancellable tasks in response to
// reactive state changes.
package orchestration

import (
	"context"
	"errors"
	"sync"

	"hlsengine/internal/logger"
	"hlsengine/internal/metrics"
	"hlsengine/internal/reactive"
)

// Unit is one pipeline stage. Each value emitted by the bound source is
// checked against CanRun (structural precondition) and ShouldRun (policy);
// when both hold and no task of this unit is in flight, Task starts.
//
// Triggers that arrive while a task runs are dropped, unless Supersede
// reports that the new value replaces the running one: the running task is
// then cancelled and awaited before the new one starts. When a task settles
// the unit re-evaluates the latest value if it changed meanwhile.
type Unit[S comparable] struct {
	Name      string
	CanRun    func(S) bool
	ShouldRun func(S) bool
	Task      func(ctx context.Context, s S) error
	Supersede func(running, next S) bool

	// Sched, if set, is where task results are settled. Using the same
	// scheduler as the bound cells serializes settling with notifications.
	Sched   reactive.Scheduler
	Log     logger.Logger
	Metrics *metrics.Metrics

	mu          sync.Mutex
	scope       *Scope
	busy        bool
	gen         uint64
	running     S
	latest      S
	hasLatest   bool
	stopped     bool
	unsubscribe func()
}

// Bind subscribes the unit to src. Tasks run under ctx.
func (u *Unit[S]) Bind(ctx context.Context, src reactive.Source[S]) {
	u.mu.Lock()
	if u.scope == nil {
		u.scope = NewScope(ctx)
	}
	u.mu.Unlock()

	unsubscribe := src.Subscribe(u.Evaluate)

	u.mu.Lock()
	u.unsubscribe = unsubscribe
	stopped := u.stopped
	u.mu.Unlock()
	if stopped {
		unsubscribe()
	}
}

// Evaluate checks s against the unit's predicates and starts a task if they hold.
func (u *Unit[S]) Evaluate(s S) {
	u.mu.Lock()
	if u.stopped {
		u.mu.Unlock()
		return
	}
	u.latest, u.hasLatest = s, true
	if !u.CanRun(s) || (u.ShouldRun != nil && !u.ShouldRun(s)) {
		u.mu.Unlock()
		return
	}
	if u.busy {
		if u.Supersede == nil || !u.Supersede(u.running, s) {
			u.mu.Unlock()
			return
		}
		u.debugf("%s: superseding running task", u.Name)
	}
	if u.scope == nil {
		u.scope = NewScope(context.Background())
	}
	u.busy = true
	u.running = s
	u.gen++
	gen := u.gen
	scope := u.scope
	u.mu.Unlock()

	u.Metrics.IncTask(u.Name)
	scope.Go(func(ctx context.Context) {
		var err error
		if err = ctx.Err(); err == nil {
			err = u.Task(ctx, s)
		}
		if u.Sched != nil {
			u.Sched.Schedule(func() { u.settle(gen, err) })
		} else {
			u.settle(gen, err)
		}
	})
}

func (u *Unit[S]) settle(gen uint64, err error) {
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		u.debugf("%s: task cancelled", u.Name)
	default:
		u.Metrics.IncTaskError(u.Name)
		if u.Log != nil {
			u.Log.Errorf("%s: %v", u.Name, err)
		}
	}

	u.mu.Lock()
	if gen != u.gen || u.stopped {
		u.mu.Unlock()
		return
	}
	u.busy = false
	again := u.hasLatest && u.latest != u.running
	latest := u.latest
	u.mu.Unlock()

	if again {
		u.Evaluate(latest)
	}
}

// Busy reports whether a task is in flight.
func (u *Unit[S]) Busy() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.busy
}

// Stop detaches the unit from its source, cancels the in-flight task and
// waits for it to return.
func (u *Unit[S]) Stop() {
	u.mu.Lock()
	u.stopped = true
	unsubscribe := u.unsubscribe
	scope := u.scope
	u.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if scope != nil {
		scope.Close()
	}
}

func (u *Unit[S]) debugf(format string, v ...interface{}) {
	if u.Log != nil {
		u.Log.Debugf(format, v...)
	}
}
