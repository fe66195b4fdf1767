// README: Driver HTTP handlers (nearby query, per-driver trip history).
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridequick/internal/modules/driver"
	"ridequick/internal/modules/trip"
	"ridequick/internal/types"
)

const defaultNearbyRadiusKm = 5.0

type DriverHandler struct {
	drivers *driver.Service
	trips   *trip.Service
}

func NewDriverHandler(drivers *driver.Service, trips *trip.Service) *DriverHandler {
	return &DriverHandler{drivers: drivers, trips: trips}
}

type nearbyDriverResponse struct {
	*driver.Driver
	Distance float64 `json:"distance"`
}

// Nearby lists available drivers around lat/lng, closest first.
// maxDistance is in kilometres and defaults to 5.
func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid lat")
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid lng")
		return
	}
	radius := defaultNearbyRadiusKm
	if v := c.Query("maxDistance"); v != "" {
		if radius, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(c, http.StatusBadRequest, "invalid maxDistance")
			return
		}
	}

	nearby, err := h.drivers.FindNearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]nearbyDriverResponse, 0, len(nearby))
	for _, n := range nearby {
		out = append(out, nearbyDriverResponse{Driver: n.Driver, Distance: types.Round2(n.DistanceKm)})
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *DriverHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

// Trips lists the trips a driver has been assigned, newest first.
func (h *DriverHandler) Trips(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := h.drivers.Get(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	trips, err := h.trips.ListForDriver(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponses(trips))
}
