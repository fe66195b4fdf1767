// README: Matching service picks and reserves the nearest driver, escalating the search radius.
package matching

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ridequick/internal/config"
	"ridequick/internal/geo"
	"ridequick/internal/modules/driver"
	"ridequick/internal/types"
)

type Service struct {
	registry Registry
	cfg      config.MatchingConfig
	log      *zap.Logger
}

func NewService(registry Registry, cfg config.MatchingConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{registry: registry, cfg: cfg, log: logger}
}

type candidate struct {
	nearby driver.Nearby
	stage  Stage
}

// Assign reserves the closest available driver for pickup. It searches the
// near radius, then the wide radius, then every available driver. A candidate
// lost to a concurrent reservation is skipped in favour of the next one.
func (s *Service) Assign(ctx context.Context, pickup types.Point) (*Assignment, error) {
	if err := geo.Validate(pickup); err != nil {
		return nil, err
	}

	tried := make(map[types.ID]bool)
	for _, stage := range []Stage{StageNear, StageWide, StageAny} {
		cands, err := s.candidates(ctx, pickup, stage)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			id := c.nearby.Driver.ID
			if tried[id] {
				continue
			}
			tried[id] = true

			d, err := s.registry.Reserve(ctx, id)
			if errors.Is(err, driver.ErrUnavailable) || errors.Is(err, driver.ErrNotFound) {
				s.log.Debug("candidate taken, trying next", zap.String("driver_id", string(id)))
				continue
			}
			if err != nil {
				return nil, err
			}
			s.log.Info("driver assigned",
				zap.String("driver_id", string(id)),
				zap.String("stage", string(c.stage)),
				zap.Float64("distance_km", c.nearby.DistanceKm))
			return &Assignment{Driver: d, DistanceKm: c.nearby.DistanceKm, Stage: c.stage}, nil
		}
	}
	return nil, ErrNoDriverAvailable
}

func (s *Service) candidates(ctx context.Context, pickup types.Point, stage Stage) ([]candidate, error) {
	var radius float64
	switch stage {
	case StageNear:
		radius = s.cfg.NearRadiusKm
	case StageWide:
		radius = s.cfg.WideRadiusKm
	default:
		return s.anyAvailable(ctx, pickup)
	}

	nearby, err := s.registry.FindNearby(ctx, pickup, radius)
	if err != nil {
		return nil, err
	}
	// FindNearby pads an empty radius with the closest drivers anywhere;
	// those belong to the last stage.
	out := make([]candidate, 0, len(nearby))
	for _, n := range nearby {
		if n.DistanceKm <= radius {
			out = append(out, candidate{nearby: n, stage: stage})
		}
	}
	return out, nil
}

func (s *Service) anyAvailable(ctx context.Context, pickup types.Point) ([]candidate, error) {
	drivers, err := s.registry.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, 0, len(drivers))
	for _, d := range drivers {
		dist, err := geo.Distance(pickup, d.Location)
		if err != nil {
			continue
		}
		out = append(out, candidate{nearby: driver.Nearby{Driver: d, DistanceKm: dist}, stage: StageAny})
	}
	geo.SortByDistance(out, func(c candidate) float64 { return c.nearby.DistanceKm })
	return out, nil
}

// RunScheduler periodically retries assignment for pending trips until ctx
// is cancelled.
func (s *Service) RunScheduler(ctx context.Context, retrier PendingRetrier) {
	tick := time.Duration(s.cfg.TickSeconds) * time.Second
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := retrier.RetryPending(ctx, s.cfg.RetryBatch)
			if err != nil {
				s.log.Warn("pending trip retry failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("pending trips assigned", zap.Int("count", n))
			}
		}
	}
}
