// Package memory provides a process-local storage.KeyValue.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/lumiere-storefront/internal/storage"
)

var _ storage.KeyValue = (*Store)(nil)

// Store is a map guarded by a mutex. Contents are lost on restart.
type Store struct {
	mu sync.RWMutex
	m  map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{m: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
