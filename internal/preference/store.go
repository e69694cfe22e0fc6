// Package preference persists the last selected organization id for one device.
package preference

import (
	"context"
	"sync"
)

// Store holds a single organization id scoped to a device. Last writer wins.
type Store interface {
	// Get returns the stored organization id and true, or "", false if nothing is stored.
	Get(ctx context.Context) (string, bool, error)
	// Set replaces the stored organization id.
	Set(ctx context.Context, orgID string) error
	// Clear removes the stored organization id. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	orgID string
	set   bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored organization id.
func (s *MemoryStore) Get(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orgID, s.set, nil
}

// Set stores orgID.
func (s *MemoryStore) Set(ctx context.Context, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgID, s.set = orgID, true
	return nil
}

// Clear empties the store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgID, s.set = "", false
	return nil
}

// MemoryRegistry hands out one MemoryStore per (user, device). It backs the server when no
// Redis URL is configured; preferences are lost on restart.
type MemoryRegistry struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{stores: make(map[string]*MemoryStore)}
}

// For returns the store of userID on deviceID, creating it on first use.
func (r *MemoryRegistry) For(userID, deviceID string) Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := DeviceKey(userID, deviceID)
	s, ok := r.stores[key]
	if !ok {
		s = NewMemoryStore()
		r.stores[key] = s
	}
	return s
}
