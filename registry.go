package loupe

import "sync"

// Registry tracks the active Search per project root so callers can
// re-activate an existing search instead of opening a second one over
// the same project. It is owned by whatever top-level session manager
// instantiates searches and passed by reference; nothing here is
// process-global.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Search
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Search)}
}

// Lookup returns the active search for a project root, if any.
func (r *Registry) Lookup(root string) (*Search, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.active[root]
	return s, ok
}

// Activate returns the existing search for the root or opens a new one
// and registers it.
func (r *Registry) Activate(root string, opts ...SearchOption) (*Search, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.active[root]; ok {
		return s, nil
	}
	s, err := Open(root, opts...)
	if err != nil {
		return nil, err
	}
	r.active[root] = s
	return s, nil
}

// Release closes and forgets the search for a project root.
func (r *Registry) Release(root string) error {
	r.mu.Lock()
	s, ok := r.active[root]
	delete(r.active, root)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// Close releases every registered search.
func (r *Registry) Close() error {
	r.mu.Lock()
	searches := make([]*Search, 0, len(r.active))
	for _, s := range r.active {
		searches = append(searches, s)
	}
	r.active = make(map[string]*Search)
	r.mu.Unlock()

	var firstErr error
	for _, s := range searches {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
