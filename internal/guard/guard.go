// Package guard provides small synchronized value holders: concurrent
// readers, exclusive writers, and a compare-and-swap flag for
// "already running" style guards.
package guard

import "sync"

// Value holds a single value behind a read/write lock.
type Value[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewValue creates a guarded value with an initial state.
func NewValue[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Get returns the current value.
func (g *Value[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}

// Set replaces the current value.
func (g *Value[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v = v
}

// Flag is a guarded boolean supporting compare-and-swap, so concurrent
// triggers can atomically claim "I am the one running this".
type Flag struct {
	mu sync.Mutex
	v  bool
}

// Get returns the current flag state.
func (f *Flag) Get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.v
}

// Set replaces the flag state.
func (f *Flag) Set(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.v = v
}

// CompareAndSwap sets the flag to next only if it currently equals old,
// reporting whether the swap happened.
func (f *Flag) CompareAndSwap(old, next bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.v != old {
		return false
	}
	f.v = next
	return true
}
