// README: Driver registry answers nearby queries and owns atomic reserve/release.
package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ridequick/internal/geo"
	"ridequick/internal/types"
)

type Service struct {
	store Store
	index Index
	rnd   geo.Rand
	log   *zap.Logger
	now   func() time.Time
}

// NewService builds a registry. index may be nil, in which case nearby
// queries go straight to the store.
func NewService(store Store, index Index, rnd geo.Rand, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, index: index, rnd: rnd, log: logger, now: time.Now}
}

type RegisterCommand struct {
	FullName     string
	Phone        string
	LicensePlate string
	CarModel     string
	Location     types.Point
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Driver, error) {
	if strings.TrimSpace(cmd.FullName) == "" || strings.TrimSpace(cmd.Phone) == "" ||
		strings.TrimSpace(cmd.LicensePlate) == "" || strings.TrimSpace(cmd.CarModel) == "" {
		return nil, fmt.Errorf("%w: name, phone, license plate and car model are required", ErrBadRequest)
	}
	if err := geo.Validate(cmd.Location); err != nil {
		return nil, err
	}

	d := &Driver{
		ID:           types.NewID(),
		FullName:     cmd.FullName,
		Phone:        cmd.Phone,
		LicensePlate: cmd.LicensePlate,
		CarModel:     cmd.CarModel,
		Rating:       s.seedRating(),
		IsAvailable:  true,
		Location:     cmd.Location,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	s.indexAdd(ctx, d.ID, d.Location)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Driver, error) {
	return s.store.List(ctx)
}

func (s *Service) ListAvailable(ctx context.Context) ([]*Driver, error) {
	return s.store.ListAvailable(ctx)
}

// FindNearby returns available drivers within radiusKm of p, closest first.
// When none are inside the radius but some driver is available anywhere, the
// closest few are returned regardless of distance so a trip can still match.
func (s *Service) FindNearby(ctx context.Context, p types.Point, radiusKm float64) ([]Nearby, error) {
	if err := geo.Validate(p); err != nil {
		return nil, err
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return nil, fmt.Errorf("%w: radius must be positive", ErrBadRequest)
	}

	candidates, err := s.candidates(ctx, p, radiusKm)
	if err != nil {
		return nil, err
	}
	within := make([]Nearby, 0, len(candidates))
	for _, n := range s.withDistance(p, candidates) {
		if n.DistanceKm <= radiusKm {
			within = append(within, n)
		}
	}
	if len(within) > 0 {
		return within, nil
	}

	all, err := s.store.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	closest := s.withDistance(p, all)
	if len(closest) > fallbackCount {
		closest = closest[:fallbackCount]
	}
	return closest, nil
}

// Reserve marks the driver unavailable. Only one concurrent caller succeeds;
// the others get ErrUnavailable.
func (s *Service) Reserve(ctx context.Context, id types.ID) (*Driver, error) {
	d, err := s.store.MarkUnavailable(ctx, id)
	if err != nil {
		return nil, err
	}
	s.indexRemove(ctx, id)
	return d, nil
}

func (s *Service) Release(ctx context.Context, id types.ID) (*Driver, error) {
	d, err := s.store.MarkAvailable(ctx, id)
	if err != nil {
		return nil, err
	}
	s.indexAdd(ctx, d.ID, d.Location)
	return d, nil
}

func (s *Service) Relocate(ctx context.Context, id types.ID, p types.Point) (*Driver, error) {
	if err := geo.Validate(p); err != nil {
		return nil, err
	}
	d, err := s.store.UpdateLocation(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if d.IsAvailable {
		s.indexAdd(ctx, d.ID, d.Location)
	}
	return d, nil
}

// SyncIndex reloads the spatial index from the store, e.g. at startup.
func (s *Service) SyncIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	available, err := s.store.ListAvailable(ctx)
	if err != nil {
		return err
	}
	return s.index.Rebuild(ctx, available)
}

// candidates returns available drivers in creation order that may lie within
// the radius.
func (s *Service) candidates(ctx context.Context, p types.Point, radiusKm float64) ([]*Driver, error) {
	if s.index == nil {
		return s.store.FindAvailableWithin(ctx, p, radiusKm)
	}
	ids, err := s.index.Nearby(ctx, p, radiusKm)
	if err != nil {
		s.log.Warn("driver index lookup failed, using store", zap.Error(err))
		return s.store.FindAvailableWithin(ctx, p, radiusKm)
	}
	out := make([]*Driver, 0, len(ids))
	for _, id := range ids {
		d, err := s.store.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.indexRemove(ctx, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !d.IsAvailable {
			s.indexRemove(ctx, id)
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Service) withDistance(p types.Point, drivers []*Driver) []Nearby {
	out := make([]Nearby, 0, len(drivers))
	for _, d := range drivers {
		dist, err := geo.Distance(p, d.Location)
		if err != nil {
			s.log.Warn("skipping driver with invalid location",
				zap.String("driver_id", string(d.ID)), zap.Error(err))
			continue
		}
		out = append(out, Nearby{Driver: d, DistanceKm: dist})
	}
	geo.SortByDistance(out, func(n Nearby) float64 { return n.DistanceKm })
	return out
}

func (s *Service) seedRating() float64 {
	if s.rnd == nil {
		return maxRating
	}
	r := seedRatingFloor + s.rnd.Float64()*(maxRating-seedRatingFloor)
	return math.Max(minRating, math.Min(maxRating, r))
}

func (s *Service) indexAdd(ctx context.Context, id types.ID, p types.Point) {
	if s.index == nil {
		return
	}
	if err := s.index.Add(ctx, id, p); err != nil {
		s.log.Warn("driver index add failed", zap.String("driver_id", string(id)), zap.Error(err))
	}
}

func (s *Service) indexRemove(ctx context.Context, id types.ID) {
	if s.index == nil {
		return
	}
	if err := s.index.Remove(ctx, id); err != nil {
		s.log.Warn("driver index remove failed", zap.String("driver_id", string(id)), zap.Error(err))
	}
}
