package tree

import (
	"fmt"
	"sync"

	"github.com/cellardb/cellardb/pkg/lsm"
)

// Registry is the set of LSM trees open under one engine connection. It
// implements lsm.TreeSource, the set the Manager Thread scans each
// iteration.
type Registry struct {
	mu    sync.RWMutex
	trees map[string]*Tree
}

var _ lsm.TreeSource = (*Registry)(nil)

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{trees: make(map[string]*Tree)}
}

// Open creates and registers a new tree, or returns an error if name is
// already in use.
func (r *Registry) Open(name string) (*Tree, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.trees[name]; exists {
		return nil, fmt.Errorf("tree: %q already open", name)
	}
	t := New(name)
	r.trees[name] = t
	return t, nil
}

// Get returns the named tree, or nil if it isn't open.
func (r *Registry) Get(name string) *Tree {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trees[name]
}

// CloseTree marks a tree closed and removes it from the registry. It does
// not interrupt in-flight maintenance on the tree. Already-queued Flush and
// Bloom units for it become no-ops once Working reports false, since
// candidate selection skips a tree that is not working; already-queued
// Switch and Merge units are still dispatched against it.
func (r *Registry) CloseTree(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trees[name]; ok {
		t.Close()
		delete(r.trees, name)
	}
}

// Trees returns every currently open tree as an lsm.Tree. Order is
// unspecified; the Manager Thread's inspection pass doesn't depend on
// it.
func (r *Registry) Trees() []lsm.Tree {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]lsm.Tree, 0, len(r.trees))
	for _, t := range r.trees {
		out = append(out, t)
	}
	return out
}
