package ecs

import (
	"slices"
	"sync"
)

// Store is a component container for a single type T. Every Set stamps the
// entity with a fresh world change value and every Remove records the stamp
// of the removal, which is how steps express "added or replaced this tick"
// and "removed this tick" filters.
type Store[T any] struct {
	world      *World
	mu         sync.RWMutex
	components map[Entity]T
	changed    map[Entity]uint64
	removed    map[Entity]uint64
}

// NewStore creates a store bound to w so despawned entities are evicted.
func NewStore[T any](w *World) *Store[T] {
	s := &Store[T]{
		world:      w,
		components: make(map[Entity]T),
		changed:    make(map[Entity]uint64),
		removed:    make(map[Entity]uint64),
	}
	if w != nil {
		w.register(s)
	}
	return s
}

// Set inserts or replaces the component for e.
func (s *Store[T]) Set(e Entity, val T) {
	stamp := s.world.stamp()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[e] = val
	s.changed[e] = stamp
}

// Get returns the component for e.
func (s *Store[T]) Get(e Entity) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.components[e]
	return val, ok
}

// Has reports whether e carries the component.
func (s *Store[T]) Has(e Entity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.components[e]
	return ok
}

// Remove deletes the component for e. Removing an absent component is a no-op
// and reports false.
func (s *Store[T]) Remove(e Entity) bool {
	s.mu.RLock()
	_, ok := s.components[e]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	stamp := s.world.stamp()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.components, e)
	delete(s.changed, e)
	s.removed[e] = stamp
	return true
}

// Entities returns every entity holding the component in ascending order.
func (s *Store[T]) Entities() []Entity {
	s.mu.RLock()
	result := make([]Entity, 0, len(s.components))
	for e := range s.components {
		result = append(result, e)
	}
	s.mu.RUnlock()
	slices.Sort(result)
	return result
}

// ChangedSince returns the entities whose component was set after stamp.
func (s *Store[T]) ChangedSince(stamp uint64) []Entity {
	s.mu.RLock()
	var result []Entity
	for e, at := range s.changed {
		if at > stamp {
			result = append(result, e)
		}
	}
	s.mu.RUnlock()
	slices.Sort(result)
	return result
}

// RemovedSince returns the entities whose component was removed after stamp,
// whether or not it has been set again since.
func (s *Store[T]) RemovedSince(stamp uint64) []Entity {
	s.mu.RLock()
	var result []Entity
	for e, at := range s.removed {
		if at > stamp {
			result = append(result, e)
		}
	}
	s.mu.RUnlock()
	slices.Sort(result)
	return result
}

// Len returns the number of entities holding the component.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.components)
}

func (s *Store[T]) evict(e Entity) {
	s.Remove(e)
}
