package store

import (
	"context"
	"sync"

	"github.com/kdimtricp/lostfound/internal/models"
)

type MemoryStore struct {
	mu    sync.RWMutex
	items []models.Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, item models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, item.Clone())
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out, nil
}

func (s *MemoryStore) ListByKind(ctx context.Context, kind models.ReportKind) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Item{}
	for _, item := range s.items {
		if item.Kind == kind {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Find(ctx context.Context, id string) (models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.ID == id {
			return item.Clone(), nil
		}
	}
	return models.Item{}, ErrNotFound
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
