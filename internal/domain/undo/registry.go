package undo

import "sync"

// Registry keeps one Buffer per scope (for example an operator session).
// Buffers are created lazily.
type Registry[T any] struct {
	mu      sync.Mutex
	factory func() *Buffer[T]
	buffers map[string]*Buffer[T]
}

// NewRegistry creates a registry that builds buffers with factory.
func NewRegistry[T any](factory func() *Buffer[T]) *Registry[T] {
	return &Registry[T]{
		factory: factory,
		buffers: make(map[string]*Buffer[T]),
	}
}

// For returns the buffer of scope, creating it on first use.
func (r *Registry[T]) For(scope string) *Buffer[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buffers[scope]
	if !ok {
		b = r.factory()
		r.buffers[scope] = b
	}
	return b
}

// Drop closes and forgets the buffer of scope.
func (r *Registry[T]) Drop(scope string) {
	r.mu.Lock()
	b, ok := r.buffers[scope]
	delete(r.buffers, scope)
	r.mu.Unlock()
	if ok {
		b.Close()
	}
}

// Len returns the number of live scopes.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

// Close tears down every buffer.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	buffers := r.buffers
	r.buffers = make(map[string]*Buffer[T])
	r.mu.Unlock()
	for _, b := range buffers {
		b.Close()
	}
}
