package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ridequick/internal/types"
)

type MemoryStore struct {
	mu   sync.RWMutex
	cabs map[types.ID]CabType
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cabs: make(map[types.ID]CabType)}
}

func (s *MemoryStore) Create(_ context.Context, c CabType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cabs[c.ID]; ok {
		return fmt.Errorf("cab type %s exists: %w", c.ID, types.ErrConflict)
	}
	s.cabs[c.ID] = c
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (CabType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cabs[id]
	if !ok {
		return CabType{}, ErrCabTypeNotFound
	}
	return c, nil
}

func (s *MemoryStore) List(_ context.Context) ([]CabType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CabType, 0, len(s.cabs))
	for _, c := range s.cabs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BasePrice != out[j].BasePrice {
			return out[i].BasePrice < out[j].BasePrice
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
