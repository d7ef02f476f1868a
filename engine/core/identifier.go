package core

import (
	"fmt"
	"sync"
)

// Registry hands out small integer identifiers for owned values and reuses
// released slots. Identifier zero is never issued so it can mean "none".
type Registry[T any] struct {
	mu     sync.Mutex
	owners []*T
}

func NewRegistry[T any](capacity int) *Registry[T] {
	return &Registry[T]{
		owners: make([]*T, 0, capacity),
	}
}

func (r *Registry[T]) Acquire(owner T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.owners {
		// Existing free spot. Take it.
		if r.owners[i] == nil {
			r.owners[i] = &owner
			return uint64(i) + 1
		}
	}
	r.owners = append(r.owners, &owner)
	return uint64(len(r.owners))
}

func (r *Registry[T]) Get(id uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if id == 0 || id > uint64(len(r.owners)) || r.owners[id-1] == nil {
		return zero, false
	}
	return *r.owners[id-1], true
}

// Release frees the slot and returns the value that owned it.
func (r *Registry[T]) Release(id uint64) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if id == 0 || id > uint64(len(r.owners)) {
		return zero, fmt.Errorf("identifier %d out of range (max=%d)", id, len(r.owners))
	}
	owner := r.owners[id-1]
	if owner == nil {
		return zero, fmt.Errorf("identifier %d already released", id)
	}
	r.owners[id-1] = nil
	return *owner, nil
}

// Len counts the live identifiers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.owners {
		if o != nil {
			n++
		}
	}
	return n
}
