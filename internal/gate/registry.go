package gate

import (
	"strconv"
	"sync"
)

// Sentinel speaker used when a transcript carries no identity.
const (
	UnknownID   = "unknown"
	UnknownName = "Unknown"
)

// Registry maps speaker identities to display names for one call. Names are
// never removed or replaced once registered; presence is tracked separately
// for the participants block of the prompt addendum.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	names   map[string]string
	order   []string
	present map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		names:   make(map[string]string),
		present: make(map[string]bool),
	}
}

// Register adds id with the given name unless id is already known. It
// reports whether the entry was added.
func (r *Registry) Register(id, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(id, name)
}

func (r *Registry) register(id, name string) bool {
	if _, ok := r.names[id]; ok {
		return false
	}
	if name == "" {
		name = id
	}
	r.names[id] = name
	r.order = append(r.order, id)
	return true
}

// Join registers id when needed and marks it present.
func (r *Registry) Join(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(id, name)
	r.present[id] = true
}

// Leave marks id as no longer present. The name stays registered.
func (r *Registry) Leave(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.present, id)
}

// Name returns the registered display name for id.
func (r *Registry) Name(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.names[id]
	return n, ok
}

// Resolve returns the identity and display name to record for a transcript.
// An empty id maps to the Unknown sentinel. An unregistered id is assigned
// "User{N}" with N the registry size plus one, and that name is kept.
func (r *Registry) Resolve(id string) (resolvedID, name string) {
	if id == "" {
		return UnknownID, UnknownName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.names[id]; ok {
		return id, n
	}
	n := "User" + strconv.Itoa(len(r.names)+1)
	r.register(id, n)
	r.present[id] = true
	return id, n
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Present returns the display names of present speakers in registration order.
func (r *Registry) Present() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, id := range r.order {
		if r.present[id] {
			out = append(out, r.names[id])
		}
	}
	return out
}
