package trip

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ridequick/internal/types"
)

// MemoryStore keeps trips in process. Every read returns a copy.
type MemoryStore struct {
	mu     sync.RWMutex
	trips  map[types.ID]*Trip
	order  []types.ID
	events []Event
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: make(map[types.ID]*Trip)}
}

func (s *MemoryStore) Create(_ context.Context, t *Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[t.ID]; ok {
		return fmt.Errorf("trip %s exists: %w", t.ID, types.ErrConflict)
	}
	s.trips[t.ID] = t.clone()
	s.order = append(s.order, t.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.clone(), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID types.ID) ([]*Trip, error) {
	return s.newestFirst(func(t *Trip) bool { return t.UserID == userID }), nil
}

func (s *MemoryStore) ListByDriver(_ context.Context, driverID types.ID) ([]*Trip, error) {
	return s.newestFirst(func(t *Trip) bool { return t.DriverID != nil && *t.DriverID == driverID }), nil
}

func (s *MemoryStore) ListPendingUnassigned(_ context.Context, limit int) ([]*Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Trip
	for _, id := range s.order {
		t := s.trips[id]
		if t.Status == StatusPending && t.DriverID == nil {
			out = append(out, t.clone())
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, t *Trip, expectedVersion int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.trips[t.ID]
	if !ok {
		return false, ErrNotFound
	}
	if cur.StatusVersion != expectedVersion {
		return false, nil
	}
	next := cur.clone()
	next.Status = t.Status
	next.DriverID = t.DriverID
	next.StartTime = t.StartTime
	next.EndTime = t.EndTime
	next.StatusVersion = expectedVersion + 1
	s.trips[t.ID] = next.clone()
	return true, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryStore) Events(_ context.Context, tripID types.ID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.TripID == tripID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) newestFirst(keep func(*Trip) bool) []*Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Trip
	for i := len(s.order) - 1; i >= 0; i-- {
		t := s.trips[s.order[i]]
		if keep(t) {
			out = append(out, t.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
