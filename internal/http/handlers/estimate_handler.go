// README: Fare, distance and arrival estimate handler.
package handlers

import (
	"context"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ridequick/internal/geo"
	"ridequick/internal/maps"
	"ridequick/internal/modules/driver"
	"ridequick/internal/modules/pricing"
	"ridequick/internal/types"
)

// RouteEstimator is satisfied by *maps.RouteService.
type RouteEstimator interface {
	DrivingEstimate(ctx context.Context, origin, destination types.Point) (maps.Estimate, error)
}

type EstimateHandler struct {
	pricing *pricing.Service
	drivers *driver.Service
	routes  RouteEstimator
	log     *zap.Logger
}

// NewEstimateHandler builds the handler. routes may be nil, in which case
// travel times come from the linear 30 km/h estimate only.
func NewEstimateHandler(p *pricing.Service, d *driver.Service, routes RouteEstimator, logger *zap.Logger) *EstimateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EstimateHandler{pricing: p, drivers: d, routes: routes, log: logger}
}

type estimateRequest struct {
	PickupLat      *float64 `json:"pickupLat"`
	PickupLng      *float64 `json:"pickupLng"`
	DestinationLat *float64 `json:"destinationLat"`
	DestinationLng *float64 `json:"destinationLng"`
	CabTypeID      string   `json:"cabTypeId"`
}

type estimateResponse struct {
	pricing.Quote
	// DriverArrivalMinutes is nil when no driver is available.
	DriverArrivalMinutes *int     `json:"driverArrivalTime"`
	DriverDistanceKm     *float64 `json:"driverDistance,omitempty"`
	Routed               bool     `json:"routed"`
}

func (h *EstimateHandler) Estimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PickupLat == nil || req.PickupLng == nil || req.DestinationLat == nil || req.DestinationLng == nil {
		writeError(c, http.StatusBadRequest, "pickup and destination coordinates are required")
		return
	}
	ctx := c.Request.Context()
	pickup := types.Point{Lat: *req.PickupLat, Lng: *req.PickupLng}
	dest := types.Point{Lat: *req.DestinationLat, Lng: *req.DestinationLng}

	quote, err := h.pricing.Quote(ctx, types.ID(req.CabTypeID), pickup, dest)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := estimateResponse{Quote: quote}

	if h.routes != nil {
		est, err := h.routes.DrivingEstimate(ctx, pickup, dest)
		if err != nil {
			h.log.Warn("route estimate failed, using linear estimate", zap.Error(err))
		} else {
			resp.EtaMinutes = int(math.Round(est.Duration.Minutes()))
			resp.Routed = true
		}
	}

	nearby, err := h.drivers.FindNearby(ctx, pickup, defaultNearbyRadiusKm)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if len(nearby) > 0 {
		km := types.Round2(nearby[0].DistanceKm)
		mins := geo.EstimateTravelTime(km)
		resp.DriverDistanceKm = &km
		resp.DriverArrivalMinutes = &mins
	}
	writeJSON(c, http.StatusOK, resp)
}
