package optimistic

import (
	"sort"
	"sync"
)

// Store holds the locally visible state of one kind of entity, keyed by id.
// It is owned by the screen that loaded it and is safe for concurrent use:
// mutation results may land on any goroutine.
type Store[E any] struct {
	mu       sync.RWMutex
	items    map[int]E
	onChange func(id int, e E)
}

func NewStore[E any]() *Store[E] {
	return &Store[E]{items: make(map[int]E)}
}

// OnChange registers a listener invoked after every change, outside the lock.
// Set it before the store is shared.
func (s *Store[E]) OnChange(fn func(id int, e E)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Put inserts or replaces an entity.
func (s *Store[E]) Put(id int, e E) {
	if fn := s.put(id, e); fn != nil {
		fn(id, e)
	}
}

// put stores e and returns the listener the caller must notify.
func (s *Store[E]) put(id int, e E) func(int, E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = e
	return s.onChange
}

// Get returns a copy of the entity.
func (s *Store[E]) Get(id int) (E, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	return e, ok
}

// List returns copies of all entities ordered by id.
func (s *Store[E]) List() []E {
	s.mu.RLock()
	ids := make([]int, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]E, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id])
	}
	s.mu.RUnlock()
	return out
}

// Len returns the number of entities.
func (s *Store[E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// update applies fn to the stored entity atomically.
func (s *Store[E]) update(id int, fn func(*E)) (E, bool) {
	s.mu.Lock()
	e, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return e, false
	}
	fn(&e)
	s.items[id] = e
	listener := s.onChange
	s.mu.Unlock()
	if listener != nil {
		listener(id, e)
	}
	return e, true
}
