package objectstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory Store. It is the store used by
// tests and by local runs that do not need durability.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (s *MemoryStore) Stat(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return "", fmt.Errorf("objectstore.MemoryStore.Stat %q: %w", key, ErrNotFound)
	}
	return obj.Version, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, fmt.Errorf("objectstore.MemoryStore.Get %q: %w", key, ErrNotFound)
	}
	// Hand out a copy so callers cannot mutate the stored bytes.
	return Object{Data: append([]byte(nil), obj.Data...), Version: obj.Version}, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, ifVersion string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects[key].Version != ifVersion {
		return "", fmt.Errorf("objectstore.MemoryStore.Put %q: %w", key, ErrVersionConflict)
	}
	v := uuid.NewString()
	s.objects[key] = Object{Data: append([]byte(nil), data...), Version: v}
	return v, nil
}
