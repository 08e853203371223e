// Package registry owns the in-memory followup collection. All reads hand out
// clones and all mutations run inside Update, so every transition re-validates
// current state under the lock before writing.
package registry

import (
	"errors"
	"sync"

	"github.com/threadkeep/threadkeep/internal/followup"
)

var ErrNotFound = errors.New("followup not found")

type Registry struct {
	mu    sync.RWMutex
	order []string
	items map[string]*followup.Followup
}

func New() *Registry {
	return &Registry{
		items: make(map[string]*followup.Followup),
	}
}

// Load replaces the whole collection, preserving the given order.
func (r *Registry) Load(fs []*followup.Followup) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = r.order[:0]
	r.items = make(map[string]*followup.Followup, len(fs))
	for _, f := range fs {
		r.order = append(r.order, f.ID)
		r.items[f.ID] = f.Clone()
	}
}

func (r *Registry) Insert(f *followup.Followup) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[f.ID]; !exists {
		r.order = append(r.order, f.ID)
	}
	r.items[f.ID] = f.Clone()
}

// Find returns a clone of the followup, or false when the id is unknown.
func (r *Registry) Find(id string) (*followup.Followup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.items[id]
	if !ok {
		return nil, false
	}
	return f.Clone(), true
}

// FindByThread returns the followup bound to a thread, if any.
func (r *Registry) FindByThread(channel, threadTS string) (*followup.Followup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		f := r.items[id]
		if f.Channel == channel && f.ThreadTS == threadTS {
			return f.Clone(), true
		}
	}
	return nil, false
}

// Snapshot returns clones of every followup in collection order. Safe to
// iterate while other goroutines mutate the registry.
func (r *Registry) Snapshot() []*followup.Followup {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*followup.Followup, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Clone())
	}
	return out
}

// Filter returns clones of followups matching the predicate.
func (r *Registry) Filter(pred func(*followup.Followup) bool) []*followup.Followup {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*followup.Followup
	for _, id := range r.order {
		if pred(r.items[id]) {
			out = append(out, r.items[id].Clone())
		}
	}
	return out
}

// Update runs fn against the live record under the write lock. fn sees
// current state, not the snapshot the caller planned from; returning an error
// aborts the mutation.
func (r *Registry) Update(id string, fn func(*followup.Followup) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	return fn(f)
}

// Remove deletes a followup permanently.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}
