// README: Driving-time estimates from the Google Maps Directions API.
package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"ridequick/internal/geo"
	"ridequick/internal/types"
)

var ErrNoRoute = errors.New("no route found")

// DirectionsClient is satisfied by *maps.Client.
type DirectionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client DirectionsClient
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

func NewRouteServiceWithClient(client DirectionsClient) *RouteService {
	return &RouteService{client: client}
}

// Estimate is a routed driving estimate between two coordinates.
type Estimate struct {
	Duration   time.Duration
	DistanceKm float64
}

// DrivingEstimate returns the driving duration and road distance from origin
// to destination.
func (s *RouteService) DrivingEstimate(ctx context.Context, origin, destination types.Point) (Estimate, error) {
	if err := geo.Validate(origin); err != nil {
		return Estimate{}, err
	}
	if err := geo.Validate(destination); err != nil {
		return Estimate{}, err
	}
	r := &maps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(destination),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return Estimate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Estimate{}, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	return Estimate{Duration: leg.Duration, DistanceKm: float64(leg.Distance.Meters) / 1000}, nil
}

func latLng(p types.Point) string {
	return (&maps.LatLng{Lat: p.Lat, Lng: p.Lng}).String()
}
