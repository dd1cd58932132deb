// Package cache holds the in-memory registries that keep live workflow
// state between device requests.
package cache

import "sync"

// Registry is a mutex-guarded string-keyed map.
type Registry[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

func NewRegistry[V any]() *Registry[V] {
	return &Registry[V]{items: make(map[string]V)}
}

func (r *Registry[V]) Add(key string, v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key] = v
}

func (r *Registry[V]) Find(key string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok
}

func (r *Registry[V]) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, key)
}
