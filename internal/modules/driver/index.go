// README: Redis GEO index of available drivers; the store stays authoritative.
package driver

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ridequick/internal/types"
)

// IndexKey is the Redis sorted set holding available driver positions.
const IndexKey = "registry:drivers:available"

// Redis measures with a slightly larger earth radius than geo.Distance; the
// registry filters exactly afterwards, so the index query is padded.
const indexRadiusPad = 1.001

// Index is an optional spatial cache consulted before the store.
type Index interface {
	Add(ctx context.Context, id types.ID, p types.Point) error
	Remove(ctx context.Context, id types.ID) error
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
	Rebuild(ctx context.Context, drivers []*Driver) error
}

type RedisIndex struct {
	redis *redis.Client
	key   string
}

func NewRedisIndex(redis *redis.Client) *RedisIndex {
	return &RedisIndex{redis: redis, key: IndexKey}
}

func (s *RedisIndex) Add(ctx context.Context, id types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, s.key, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (s *RedisIndex) Remove(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, s.key, string(id)).Err()
}

func (s *RedisIndex) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, s.key, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm * indexRadiusPad,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

// Rebuild replaces the index content with the given available drivers.
func (s *RedisIndex) Rebuild(ctx context.Context, drivers []*Driver) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(drivers) > 0 {
		locs := make([]*redis.GeoLocation, 0, len(drivers))
		for _, d := range drivers {
			locs = append(locs, &redis.GeoLocation{
				Name:      string(d.ID),
				Longitude: d.Location.Lng,
				Latitude:  d.Location.Lat,
			})
		}
		pipe.GeoAdd(ctx, s.key, locs...)
	}
	_, err := pipe.Exec(ctx)
	return err
}
