package session

import (
	"context"
	"sync"

	"welcome-backend/internal/models"
)

// MemoryStore keeps histories in a process-lifetime map.
type MemoryStore struct {
	mu       sync.Mutex
	max      int
	sessions map[string]*History
}

func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		max:      maxHistory,
		sessions: make(map[string]*History),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, key string, msgs ...models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[key]
	if !ok {
		h = NewHistory(s.max)
		s.sessions[key] = h
	}
	h.Append(msgs...)
	return nil
}

// Messages implements Store.
func (s *MemoryStore) Messages(ctx context.Context, key string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[key]
	if !ok {
		return []models.Message{}, nil
	}
	return h.Messages(), nil
}

// Len implements Store.
func (s *MemoryStore) Len(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.sessions[key]; ok {
		return h.Len(), nil
	}
	return 0, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*History)
	return nil
}
