// README: Default fleet used by the in-memory backend and empty databases.
package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ridequick/internal/geo"
	"ridequick/internal/types"
)

type seedCity struct {
	name   string
	center types.Point
}

var seedCities = []seedCity{
	{"NYC", types.Point{Lat: 40.7128, Lng: -74.0060}},
	{"Anand", types.Point{Lat: 22.5967198, Lng: 72.8345504}},
	{"London", types.Point{Lat: 51.5074, Lng: -0.1278}},
	{"Tokyo", types.Point{Lat: 35.6762, Lng: 139.6503}},
	{"Sydney", types.Point{Lat: -33.8688, Lng: 151.2093}},
}

const (
	driversPerCity = 5
	seedOffsetDeg  = 0.01
)

var seedCarModels = []string{"Toyota Camry", "Honda Accord", "Ford Explorer"}

// Seed registers the default fleet when the store is empty and reports how
// many drivers were created.
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	created := 0
	for ci, city := range seedCities {
		for i := 0; i < driversPerCity; i++ {
			idx := ci*driversPerCity + i
			_, err := s.Register(ctx, RegisterCommand{
				FullName:     fmt.Sprintf("Driver %d", idx+1),
				Phone:        fmt.Sprintf("555-%d", 1000+idx),
				LicensePlate: fmt.Sprintf("ABC%d", 1000+idx),
				CarModel:     seedCarModels[idx%len(seedCarModels)],
				Location:     geo.Jitter(city.center, seedOffsetDeg, s.rnd),
			})
			if err != nil {
				return created, err
			}
			created++
		}
	}
	s.log.Info("seeded default drivers", zap.Int("count", created))
	return created, nil
}
