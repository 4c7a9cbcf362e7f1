// Package registry provides a single generic id -> implementation table,
// shared by the tool and UI component registries so neither package has to
// duplicate register/lookup bookkeeping (and so neither has to import the
// other to do it).
package registry

import (
	"sort"
	"sync"

	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
)

// NotFoundFunc builds the domain-specific "not found" error for a given id
// (ToolNotFoundError, UIComponentNotFoundError, ...).
type NotFoundFunc func(id string) error

// Registry is a thread-safe, generically-typed id -> T table.
type Registry[T any] struct {
	mu       sync.RWMutex
	items    map[string]T
	notFound NotFoundFunc
}

// New constructs an empty Registry. notFound builds the error returned by
// Get when an id is absent.
func New[T any](notFound NotFoundFunc) *Registry[T] {
	return &Registry[T]{
		items:    make(map[string]T),
		notFound: notFound,
	}
}

// Register adds id -> item, returning a ValidationError if id is already
// registered.
func (r *Registry[T]) Register(id string, item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; exists {
		return streamyerrors.NewValidationError("id", "already registered: "+id, nil)
	}
	r.items[id] = item
	return nil
}

// Unregister removes id, if present. Removing an absent id is a no-op.
func (r *Registry[T]) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// Get looks up id, returning the domain-specific not-found error if absent.
func (r *Registry[T]) Get(id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		var zero T
		if r.notFound != nil {
			return zero, r.notFound(id)
		}
		return zero, streamyerrors.NewValidationError("id", "not found: "+id, nil)
	}
	return item, nil
}

// Has reports whether id is registered.
func (r *Registry[T]) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[id]
	return ok
}

// IDs returns every registered id, sorted.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Size returns the number of registered items.
func (r *Registry[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Clear removes every registered item. Administrative only.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]T)
}
