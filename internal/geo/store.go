package geo

import "sync"

// store holds the latest value and fans every change out to observers.
// New observers receive the current value before any later change.
//
// notifyMu is held across mutate-and-notify so every observer sees changes in
// the order they were made. Observers run synchronously and must not call
// Update.
type store[T any] struct {
	notifyMu sync.Mutex

	mu        sync.Mutex
	value     T
	nextID    int
	observers []observer[T]
}

type observer[T any] struct {
	id int
	fn func(T)
}

func newStore[T any](initial T) *store[T] {
	return &store[T]{value: initial}
}

// Get returns the current value.
func (s *store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Update applies fn under the store lock. When fn reports a change the new
// value is published to every observer before Update returns.
func (s *store[T]) Update(fn func(T) (T, bool)) (T, bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next, changed := fn(s.value)
	if !changed {
		cur := s.value
		s.mu.Unlock()
		return cur, false
	}
	s.value = next
	observers := append([]observer[T](nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(next)
	}
	return next, true
}

// Subscribe replays the current value to fn and registers it for every later
// change. The returned func unregisters fn; it is safe to call from inside fn.
func (s *store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, observer[T]{id: id, fn: fn})
	cur := s.value
	s.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}
