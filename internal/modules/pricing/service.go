// README: Pricing service computes fares from cab type rates.
package pricing

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"ridequick/internal/geo"
	"ridequick/internal/types"
)

// Price is base + distance × perKm rounded half-up to cents. It never goes
// below the base price and is non-decreasing in distance.
func Price(distanceKm float64, cab CabType) float64 {
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		distanceKm = 0
	}
	return types.Round2(cab.BasePrice + distanceKm*cab.PricePerKm)
}

type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, log: logger}
}

func (s *Service) CabType(ctx context.Context, id types.ID) (CabType, error) {
	if id == "" {
		return CabType{}, fmt.Errorf("%w: cab type id is required", ErrBadCabType)
	}
	return s.store.Get(ctx, id)
}

func (s *Service) CabTypes(ctx context.Context) ([]CabType, error) {
	return s.store.List(ctx)
}

func (s *Service) Create(ctx context.Context, c CabType) (CabType, error) {
	if err := c.validate(); err != nil {
		return CabType{}, err
	}
	if c.ID == "" {
		c.ID = types.NewID()
	}
	if err := s.store.Create(ctx, c); err != nil {
		return CabType{}, err
	}
	return c, nil
}

// Quote prices a ride between two points for the given cab type. The
// distance is rounded to two decimals before pricing so that a stored trip
// reproduces its price from its stored distance.
func (s *Service) Quote(ctx context.Context, cabTypeID types.ID, from, to types.Point) (Quote, error) {
	cab, err := s.CabType(ctx, cabTypeID)
	if err != nil {
		return Quote{}, err
	}
	km, err := geo.Distance(from, to)
	if err != nil {
		return Quote{}, err
	}
	km = types.Round2(km)
	return Quote{
		CabTypeID:  cab.ID,
		DistanceKm: km,
		Price:      Price(km, cab),
		EtaMinutes: geo.EstimateTravelTime(km),
	}, nil
}

var defaultCabTypes = []CabType{
	{Name: "Standard", Description: "Affordable, everyday rides", BasePrice: 5, PricePerKm: 1.5, SeatingCapacity: 4},
	{Name: "Premium", Description: "High-end cars with top-rated drivers", BasePrice: 8, PricePerKm: 2.25, SeatingCapacity: 4},
	{Name: "SUV", Description: "Spacious rides for groups", BasePrice: 10, PricePerKm: 3, SeatingCapacity: 6},
}

// Seed inserts the default cab types when none exist.
func (s *Service) Seed(ctx context.Context) (int, error) {
	existing, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, c := range defaultCabTypes {
		if _, err := s.Create(ctx, c); err != nil {
			return i, err
		}
	}
	s.log.Info("seeded default cab types", zap.Int("count", len(defaultCabTypes)))
	return len(defaultCabTypes), nil
}
