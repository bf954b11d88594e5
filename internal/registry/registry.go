// Package registry associates one provider with each live map handle.
//
// Keys are weak: the registry never keeps a map alive, and an entry is dropped
// once its map has been collected. Providers must not hold a strong reference
// to their map or the entry can never be reclaimed.
package registry

import (
	"runtime"
	"sync"
	"weak"
)

type Registry[M any, P any] struct {
	mu      sync.Mutex
	entries map[weak.Pointer[M]]P
}

func New[M any, P any]() *Registry[M, P] {
	return &Registry[M, P]{entries: make(map[weak.Pointer[M]]P)}
}

// Get returns the provider for m, calling create the first time m is seen.
// A nil m is passed to create and never cached.
func (r *Registry[M, P]) Get(m *M, create func(weak.Pointer[M]) P) P {
	if m == nil {
		return create(weak.Pointer[M]{})
	}
	key := weak.Make(m)

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.entries[key]; ok {
		return p
	}
	p := create(key)
	r.entries[key] = p
	runtime.AddCleanup(m, r.drop, key)
	return p
}

func (r *Registry[M, P]) drop(key weak.Pointer[M]) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

func (r *Registry[M, P]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Each calls fn for every provider whose map is still reachable.
func (r *Registry[M, P]) Each(fn func(P)) {
	r.mu.Lock()
	ps := make([]P, 0, len(r.entries))
	for k, p := range r.entries {
		if k.Value() != nil {
			ps = append(ps, p)
		}
	}
	r.mu.Unlock()
	for _, p := range ps {
		fn(p)
	}
}
