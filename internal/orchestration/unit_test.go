package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsengine/internal/metrics"
	"hlsengine/internal/reactive"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Debugf(format string, v ...interface{}) {}
func (m *mockLogger) Infof(format string, v ...interface{})  {}
func (m *mockLogger) Warnf(format string, v ...interface{})  {}
func (m *mockLogger) Errorf(format string, v ...interface{}) {
	m.mu.Lock()
	m.errors = append(m.errors, format)
	m.mu.Unlock()
}

type trigger struct {
	URL  string
	Seek int
}

func TestUnit_AtMostOneTaskInFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	u := &Unit[trigger]{
		Name:   "resolve",
		CanRun: func(s trigger) bool { return s.URL != "" },
		Task: func(ctx context.Context, s trigger) error {
			calls.Add(1)
			<-release
			return nil
		},
	}
	defer u.Stop()

	u.Evaluate(trigger{URL: "a"})
	u.Evaluate(trigger{URL: "a"})
	u.Evaluate(trigger{URL: "a", Seek: 1})

	assert.True(t, u.Busy())
	assert.Equal(t, int32(1), calls.Load())
	close(release)
	assert.Eventually(t, func() bool { return calls.Load() == 2 && !u.Busy() }, time.Second, time.Millisecond,
		"one task, plus one re-evaluation for the value that changed meanwhile")
}

func TestUnit_IdenticalTriggersRunOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	u := &Unit[trigger]{
		Name:   "resolve",
		CanRun: func(s trigger) bool { return true },
		Task: func(ctx context.Context, s trigger) error {
			calls.Add(1)
			<-release
			return nil
		},
	}
	defer u.Stop()

	u.Evaluate(trigger{URL: "a"})
	u.Evaluate(trigger{URL: "a"})
	close(release)
	assert.Eventually(t, func() bool { return !u.Busy() }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnit_Predicates(t *testing.T) {
	var calls atomic.Int32
	u := &Unit[trigger]{
		Name:      "gated",
		CanRun:    func(s trigger) bool { return s.URL != "" },
		ShouldRun: func(s trigger) bool { return s.Seek > 0 },
		Task: func(ctx context.Context, s trigger) error {
			calls.Add(1)
			return nil
		},
	}
	defer u.Stop()

	u.Evaluate(trigger{})
	u.Evaluate(trigger{URL: "a"})
	assert.False(t, u.Busy())
	u.Evaluate(trigger{URL: "a", Seek: 1})
	assert.Eventually(t, func() bool { return calls.Load() == 1 && !u.Busy() }, time.Second, time.Millisecond)
}

func TestUnit_SupersedeCancelsAndAwaitsPrevious(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	u := &Unit[trigger]{
		Name:      "load",
		CanRun:    func(s trigger) bool { return true },
		Supersede: func(running, next trigger) bool { return next.Seek != running.Seek },
		Task: func(ctx context.Context, s trigger) error {
			record("start")
			if s.Seek == 0 {
				<-ctx.Done()
				time.Sleep(10 * time.Millisecond)
				record("cancelled")
				return ctx.Err()
			}
			record("done")
			return nil
		},
	}
	defer u.Stop()

	u.Evaluate(trigger{URL: "a"})
	assert.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(events) == 1 }, time.Second, time.Millisecond)
	u.Evaluate(trigger{URL: "a", Seek: 1})

	assert.Eventually(t, func() bool { return !u.Busy() }, time.Second, time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"start", "cancelled", "start", "done"}, events)
}

func TestUnit_ErrorsAreLoggedAndCancellationAbsorbed(t *testing.T) {
	log := &mockLogger{}
	m := metrics.New()
	boom := errors.New("boom")
	sched := &reactive.ManualScheduler{}
	u := &Unit[trigger]{
		Name:    "resolve",
		CanRun:  func(s trigger) bool { return true },
		Sched:   sched,
		Log:     log,
		Metrics: m,
		Task: func(ctx context.Context, s trigger) error {
			if s.URL == "cancel" {
				return context.Canceled
			}
			return boom
		},
	}
	defer u.Stop()

	u.Evaluate(trigger{URL: "fail"})
	require.Eventually(t, func() bool { return sched.Pending() == 1 }, time.Second, time.Millisecond)
	assert.True(t, u.Busy(), "settled on the scheduler")
	sched.Drain()
	assert.False(t, u.Busy())

	u.Evaluate(trigger{URL: "cancel"})
	require.Eventually(t, func() bool { return sched.Pending() == 1 }, time.Second, time.Millisecond)
	sched.Drain()

	log.mu.Lock()
	assert.Len(t, log.errors, 1)
	log.mu.Unlock()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TasksStarted("resolve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskErrors("resolve")))
}

func TestUnit_FailedTaskWaitsForNextTrigger(t *testing.T) {
	var calls atomic.Int32
	u := &Unit[trigger]{
		Name:   "resolve",
		CanRun: func(s trigger) bool { return true },
		Task: func(ctx context.Context, s trigger) error {
			calls.Add(1)
			return errors.New("transport")
		},
	}
	defer u.Stop()

	u.Evaluate(trigger{URL: "a"})
	assert.Eventually(t, func() bool { return !u.Busy() }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "no automatic retry")

	u.Evaluate(trigger{URL: "a", Seek: 2})
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestUnit_BindAndStop(t *testing.T) {
	sched := &reactive.ManualScheduler{}
	cell := reactive.NewCell(trigger{}, sched)

	var (
		calls     atomic.Int32
		cancelled atomic.Bool
	)
	u := &Unit[trigger]{
		Name:   "bound",
		CanRun: func(s trigger) bool { return s.URL != "" },
		Sched:  sched,
		Task: func(ctx context.Context, s trigger) error {
			calls.Add(1)
			<-ctx.Done()
			cancelled.Store(true)
			return ctx.Err()
		},
	}
	u.Bind(context.Background(), cell)

	cell.Patch(func(s *trigger) { s.URL = "a" })
	sched.Drain()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	u.Stop()
	assert.True(t, cancelled.Load(), "Stop waits for the task to return")

	cell.Patch(func(s *trigger) { s.URL = "b" })
	sched.Drain()
	assert.Equal(t, int32(1), calls.Load(), "detached from the source")
}

func TestScope(t *testing.T) {
	s := NewScope(context.Background())
	first := make(chan struct{})
	var order []string
	var mu sync.Mutex

	require.True(t, s.Go(func(ctx context.Context) {
		<-ctx.Done()
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		close(first)
	}))
	second := make(chan struct{})
	require.True(t, s.Go(func(ctx context.Context) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		close(second)
	}))
	<-second
	<-first
	assert.Equal(t, []string{"first", "second"}, order)

	s.Close()
	assert.False(t, s.Go(func(ctx context.Context) {}))
}
