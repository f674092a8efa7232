package fluxion

import "sync"

// Registry is an optional inventory of constructed nodes, used by
// diagnostics to enumerate the graph. Nodes join at construction via the
// WithRegistry option and stay listed for the registry's lifetime;
// deactivated nodes remain visible, marked by their own state.
type Registry struct {
	mu    sync.RWMutex
	nodes map[uint64]Signal
	order []uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[uint64]Signal)}
}

func (r *Registry) add(n Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[n.ID()]; ok {
		return
	}
	r.nodes[n.ID()] = n
	r.order = append(r.order, n.ID())
}

// Get returns the registered node with the given ID.
func (r *Registry) Get(id uint64) (Signal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[id]
	return n, ok
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Walk calls fn for every registered node in registration order.
func (r *Registry) Walk(fn func(Signal)) {
	r.mu.RLock()
	nodes := make([]Signal, 0, len(r.order))
	for _, id := range r.order {
		nodes = append(nodes, r.nodes[id])
	}
	r.mu.RUnlock()

	for _, n := range nodes {
		fn(n)
	}
}
