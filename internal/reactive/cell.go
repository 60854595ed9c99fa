package reactive

import "sync"

// Source is anything that can be subscribed to. Subscribe returns a function
// that detaches the listener.
type Source[T any] interface {
	Subscribe(fn func(T)) (unsubscribe func())
}

// SourceFunc adapts a subscribe function to Source.
type SourceFunc[T any] func(fn func(T)) func()

// Subscribe implements Source.
func (f SourceFunc[T]) Subscribe(fn func(T)) func() {
	return f(fn)
}

// CellOption configures a Cell.
type CellOption[T comparable] func(*Cell[T])

// WithEqual replaces the equality used by Flush to decide whether the pending
// value differs from the committed one.
func WithEqual[T comparable](eq func(a, b T) bool) CellOption[T] {
	return func(c *Cell[T]) {
		c.equal = eq
	}
}

// Cell holds a single value with batched change notification.
//
// Patches are applied to a pending value and committed by one scheduled
// Flush, so listeners only ever observe complete values. T should be a
// struct of comparable fields: Go struct equality is the per-field identity
// check used to detect no-op patches.
type Cell[T comparable] struct {
	mu        sync.Mutex
	current   T
	pending   T
	dirty     bool
	scheduled bool
	flushing  bool

	sched Scheduler
	equal func(a, b T) bool

	nextID    int
	listeners []listener[T]
	selectors []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

// NewCell creates a Cell holding initial.
func NewCell[T comparable](initial T, sched Scheduler, opts ...CellOption[T]) *Cell[T] {
	c := &Cell[T]{
		current: initial,
		sched:   sched,
		equal:   func(a, b T) bool { return a == b },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the committed value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Latest returns the value the next Patch would start from: the pending
// value if a flush is outstanding, the committed value otherwise.
func (c *Cell[T]) Latest() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty {
		return c.pending
	}
	return c.current
}

// Patch applies fn to a copy of the latest (pending or committed) value. If
// fn leaves every field unchanged the patch is dropped; otherwise a flush is
// scheduled unless one already is.
func (c *Cell[T]) Patch(fn func(*T)) {
	c.mu.Lock()
	base := c.current
	if c.dirty {
		base = c.pending
	}
	next := base
	fn(&next)
	if next == base {
		c.mu.Unlock()
		return
	}
	c.pending = next
	c.dirty = true
	schedule := !c.scheduled
	c.scheduled = true
	c.mu.Unlock()

	if schedule {
		c.sched.Schedule(c.Flush)
	}
}

// Set replaces the value.
func (c *Cell[T]) Set(v T) {
	c.Patch(func(t *T) { *t = v })
}

// Flush commits the pending value and notifies listeners if it differs from
// the committed one. Only one flush runs at a time; a flush requested while
// another is notifying is re-scheduled once it completes.
func (c *Cell[T]) Flush() {
	c.mu.Lock()
	c.scheduled = false
	if c.flushing || !c.dirty {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	prev, next := c.current, c.pending
	c.dirty = false
	changed := !c.equal(prev, next)
	var listeners, selectors []func(T)
	if changed {
		c.current = next
		listeners = collect(c.listeners)
		selectors = collect(c.selectors)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	for _, fn := range selectors {
		fn(next)
	}

	c.mu.Lock()
	c.flushing = false
	reschedule := c.dirty && !c.scheduled
	if reschedule {
		c.scheduled = true
	}
	c.mu.Unlock()

	if reschedule {
		c.sched.Schedule(c.Flush)
	}
}

// Subscribe registers a full-value listener. The current value is delivered
// synchronously before Subscribe returns.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	cur, unsubscribe := c.register(&c.listeners, fn)
	fn(cur)
	return unsubscribe
}

// register adds fn to list and returns the committed value at registration time.
func (c *Cell[T]) register(list *[]listener[T], fn func(T)) (T, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	*list = append(*list, listener[T]{id: id, fn: fn})

	var once sync.Once
	return c.current, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range *list {
				if l.id == id {
					*list = append((*list)[:i:i], (*list)[i+1:]...)
					return
				}
			}
		})
	}
}

// SelectOption configures a selector subscription.
type SelectOption[S any] func(*selectConfig[S])

type selectConfig[S any] struct {
	equal func(a, b S) bool
}

// WithSelectEqual sets the equality used to compare successive selections.
func WithSelectEqual[S any](eq func(a, b S) bool) SelectOption[S] {
	return func(c *selectConfig[S]) {
		c.equal = eq
	}
}

// Select subscribes fn to the part of c picked by selector. fn receives the
// current selection synchronously, then each time a flush changes the
// selection. Selections are compared with == unless WithSelectEqual is given.
func Select[T comparable, S comparable](c *Cell[T], selector func(T) S, fn func(S), opts ...SelectOption[S]) func() {
	cfg := selectConfig[S]{equal: func(a, b S) bool { return a == b }}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		mu   sync.Mutex
		last S
	)
	mu.Lock()
	cur, unsubscribe := c.register(&c.selectors, func(v T) {
		sel := selector(v)
		mu.Lock()
		if cfg.equal(last, sel) {
			mu.Unlock()
			return
		}
		last = sel
		mu.Unlock()
		fn(sel)
	})
	last = selector(cur)
	initial := last
	mu.Unlock()

	fn(initial)
	return unsubscribe
}

// AsSource exposes the selection of c as a Source.
func AsSource[T comparable, S comparable](c *Cell[T], selector func(T) S) Source[S] {
	return SourceFunc[S](func(fn func(S)) func() {
		return Select(c, selector, fn)
	})
}

func collect[T any](list []listener[T]) []func(T) {
	out := make([]func(T), len(list))
	for i, l := range list {
		out[i] = l.fn
	}
	return out
}
