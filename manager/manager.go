package manager

import (
	"fmt"
	"sync"
)

// Manager is a concurrent id -> instance registry. Compound operations (add
// if absent, drain) are atomic with respect to each other.
type Manager[K comparable, T any] struct {
	mu    sync.RWMutex
	cache map[K]T
}

func New[K comparable, T any]() *Manager[K, T] {
	return &Manager[K, T]{
		cache: make(map[K]T),
	}
}

func (m *Manager[K, T]) Get(id K) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if instance, ok := m.cache[id]; ok {
		return instance, nil
	}

	var t T
	return t, fmt.Errorf("id %v not found", id)
}

func (m *Manager[K, T]) Has(id K) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.cache[id]
	return ok
}

// Add registers instance under id and fails if id is already taken.
func (m *Manager[K, T]) Add(id K, instance T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cache[id]; ok {
		return fmt.Errorf("id %v already exists", id)
	}

	m.cache[id] = instance
	return nil
}

// Remove deletes id and returns what was registered under it.
func (m *Manager[K, T]) Remove(id K) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	instance, ok := m.cache[id]
	if ok {
		delete(m.cache, id)
	}
	return instance, ok
}

func (m *Manager[K, T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.cache)
}

// Drain empties the registry and returns everything it held.
func (m *Manager[K, T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	instances := make([]T, 0, len(m.cache))
	for id, instance := range m.cache {
		instances = append(instances, instance)
		delete(m.cache, id)
	}
	return instances
}
