package memory

import (
	"context"
	"sync"

	"github.com/zhouzirui/startup-vision/backend/internal/storage"
)

// Store implements storage.Store with an in-process map, suitable for development and tests.
type Store struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[string]string)}
}

// Get looks up key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, storage.ErrKeyRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok, nil
}

// Set stores value under key.
func (s *Store) Set(_ context.Context, key, value string) error {
	if key == "" {
		return storage.ErrKeyRequired
	}

	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
	return nil
}

// Remove deletes key.
func (s *Store) Remove(_ context.Context, key string) error {
	if key == "" {
		return storage.ErrKeyRequired
	}

	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Keys returns the number of stored keys.
func (s *Store) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
