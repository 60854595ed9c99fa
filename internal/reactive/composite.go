package reactive

import "sync"

// Stream is a discrete event stream. Unlike a Cell it has no current value:
// subscribers only see events emitted after they subscribe.
type Stream[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners []listener[T]
}

// Emit delivers v synchronously to every current subscriber.
func (s *Stream[T]) Emit(v T) {
	s.mu.Lock()
	fns := collect(s.listeners)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe implements Source.
func (s *Stream[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Pair is the latest-values tuple of a two-input composite.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple is the latest-values tuple of a three-input composite.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// latest tracks the most recent value of each composite input and whether
// every input has emitted at least once.
type latest struct {
	mu     sync.Mutex
	primed []bool
	closed bool
}

func newLatest(n int) *latest {
	return &latest{primed: make([]bool, n)}
}

// update records an emission from input i under the lock, then reports
// whether the composite should re-emit. set runs with the lock held.
func (l *latest) update(i int, set func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	set()
	l.primed[i] = true
	for _, p := range l.primed {
		if !p {
			return false
		}
	}
	return true
}

func (l *latest) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// Combine2 derives a Source that emits the latest values of a and b each
// time either emits, once both have emitted at least once.
func Combine2[A, B any](a Source[A], b Source[B]) Source[Pair[A, B]] {
	return SourceFunc[Pair[A, B]](func(fn func(Pair[A, B])) func() {
		st := newLatest(2)
		var cur Pair[A, B]
		emit := func(i int, set func()) {
			var snapshot Pair[A, B]
			ok := st.update(i, func() {
				set()
				snapshot = cur
			})
			if ok {
				fn(snapshot)
			}
		}
		ua := a.Subscribe(func(v A) { emit(0, func() { cur.First = v }) })
		ub := b.Subscribe(func(v B) { emit(1, func() { cur.Second = v }) })
		return func() {
			st.close()
			ua()
			ub()
		}
	})
}

// Combine3 is Combine2 for three inputs.
func Combine3[A, B, C any](a Source[A], b Source[B], c Source[C]) Source[Triple[A, B, C]] {
	return SourceFunc[Triple[A, B, C]](func(fn func(Triple[A, B, C])) func() {
		st := newLatest(3)
		var cur Triple[A, B, C]
		emit := func(i int, set func()) {
			var snapshot Triple[A, B, C]
			ok := st.update(i, func() {
				set()
				snapshot = cur
			})
			if ok {
				fn(snapshot)
			}
		}
		ua := a.Subscribe(func(v A) { emit(0, func() { cur.First = v }) })
		ub := b.Subscribe(func(v B) { emit(1, func() { cur.Second = v }) })
		uc := c.Subscribe(func(v C) { emit(2, func() { cur.Third = v }) })
		return func() {
			st.close()
			ua()
			ub()
			uc()
		}
	})
}

// Map derives a Source whose values are fn applied to src's values.
func Map[T, U any](src Source[T], fn func(T) U) Source[U] {
	return SourceFunc[U](func(listener func(U)) func() {
		return src.Subscribe(func(v T) { listener(fn(v)) })
	})
}
