// README: In-memory driver store; each test or dev process gets its own instance.
package driver

import (
	"context"
	"sync"

	"ridequick/internal/geo"
	"ridequick/internal/types"
)

type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[types.ID]*Driver
	order   []types.ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[types.ID]*Driver)}
}

func (s *MemoryStore) Create(_ context.Context, d *Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.drivers[d.ID]; exists {
		return types.StorageErr("driver.create", types.ErrConflict)
	}
	cp := *d
	s.drivers[d.ID] = &cp
	s.order = append(s.order, d.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Driver, error) {
	return s.filter(func(*Driver) bool { return true }), nil
}

func (s *MemoryStore) ListAvailable(_ context.Context) ([]*Driver, error) {
	return s.filter(func(d *Driver) bool { return d.IsAvailable }), nil
}

func (s *MemoryStore) FindAvailableWithin(_ context.Context, p types.Point, radiusKm float64) ([]*Driver, error) {
	return s.filter(func(d *Driver) bool {
		if !d.IsAvailable {
			return false
		}
		dist, err := geo.Distance(p, d.Location)
		return err == nil && dist <= radiusKm
	}), nil
}

func (s *MemoryStore) MarkUnavailable(_ context.Context, id types.ID) (*Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !d.IsAvailable {
		return nil, ErrUnavailable
	}
	d.IsAvailable = false
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) MarkAvailable(_ context.Context, id types.ID) (*Driver, error) {
	return s.mutate(id, func(d *Driver) { d.IsAvailable = true })
}

func (s *MemoryStore) UpdateLocation(_ context.Context, id types.ID, p types.Point) (*Driver, error) {
	return s.mutate(id, func(d *Driver) { d.Location = p })
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

func (s *MemoryStore) mutate(id types.ID, fn func(*Driver)) (*Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(d)
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) filter(keep func(*Driver) bool) []*Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Driver, 0, len(s.order))
	for _, id := range s.order {
		d := s.drivers[id]
		if keep(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out
}
