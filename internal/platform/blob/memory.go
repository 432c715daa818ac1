package blob

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemoryStore returns a MemoryStore seeded with keys.
func NewMemoryStore(keys ...string) *MemoryStore {
	s := &MemoryStore{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Put registers key as present.
func (s *MemoryStore) Put(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryStore) Driver() Driver { return DriverMemory }
