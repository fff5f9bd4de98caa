package graph

import (
	"context"
	"sync"
)

// HotSwapStore is a thread-safe wrapper that allows swapping the underlying
// store, e.g. when the configuration is reloaded while a mount is serving.
type HotSwapStore struct {
	mu      sync.RWMutex
	current Store
}

func NewHotSwapStore(initial Store) *HotSwapStore {
	return &HotSwapStore{current: initial}
}

// Swap replaces the current store and returns the previous one.
// Closing the previous store is left to the caller.
func (h *HotSwapStore) Swap(next Store) Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.current
	h.current = next
	return prev
}

// GetNode delegates to the current store.
func (h *HotSwapStore) GetNode(ctx context.Context, path string) (*Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.GetNode(ctx, path)
}

// ListChildren delegates to the current store.
func (h *HotSwapStore) ListChildren(ctx context.Context, path string) ([]*Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.ListChildren(ctx, path)
}

// SearchPaths delegates to the current store.
func (h *HotSwapStore) SearchPaths() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.SearchPaths()
}

// NodesOfType delegates to the current store.
func (h *HotSwapStore) NodesOfType(ctx context.Context, t string) ([]*Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return NodesOfType(ctx, h.current, t)
}

// Close closes the current store if it holds resources.
func (h *HotSwapStore) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return CloseStore(h.current)
}
