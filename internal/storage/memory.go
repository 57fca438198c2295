package storage

import (
	"context"
	"sync"
)

type memoryScope struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryScope builds an in-process scope. It backs the ephemeral
// scope everywhere and the durable scope when Redis is not configured.
func NewMemoryScope() Scope {
	return &memoryScope{values: make(map[string]string)}
}

func (s *memoryScope) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *memoryScope) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memoryScope) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
