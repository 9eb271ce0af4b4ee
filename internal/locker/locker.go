package locker

import "sync"

// Registry hands out one mutex per key, created on demand. Used for the
// per-order and per-cafe exclusive sections; locks live for the process
// lifetime, there is never a second lock for the same key.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*sync.Mutex)}
}

func (r *Registry) Get(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	r.locks[key] = l
	return l
}
