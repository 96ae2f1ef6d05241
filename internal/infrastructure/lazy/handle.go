// Package lazy holds a resource that is opened on first use and then shared
// for the life of the process.
package lazy

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Handle opens its resource on the first Get. Concurrent first callers share
// a single open attempt. A failed attempt is not remembered, so the next Get
// tries again.
type Handle[T any] struct {
	open  func(ctx context.Context) (T, error)
	group singleflight.Group

	mu    sync.RWMutex
	value T
	ready bool
}

func New[T any](open func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{open: open}
}

func (h *Handle[T]) load() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value, h.ready
}

// Get returns the resource, opening it if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	if v, ok := h.load(); ok {
		return v, nil
	}

	v, err, _ := h.group.Do("open", func() (any, error) {
		// A flight that finished between load and Do already set the value.
		if v, ok := h.load(); ok {
			return v, nil
		}
		v, err := h.open(ctx)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.value, h.ready = v, true
		h.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Opened reports whether the resource has been opened successfully.
func (h *Handle[T]) Opened() bool {
	_, ok := h.load()
	return ok
}

// Close releases the resource with release if it was ever opened.
func (h *Handle[T]) Close(release func(T) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return nil
	}
	var zero T
	v := h.value
	h.value, h.ready = zero, false
	return release(v)
}
