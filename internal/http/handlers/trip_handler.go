// README: Trip HTTP handlers (create, list, get, patch, start, complete, cancel).
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridequick/internal/http/middleware"
	"ridequick/internal/modules/trip"
	"ridequick/internal/types"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(trips *trip.Service) *TripHandler {
	return &TripHandler{trips: trips}
}

type createTripRequest struct {
	PickupLat          *float64 `json:"pickupLat"`
	PickupLng          *float64 `json:"pickupLng"`
	DestinationLat     *float64 `json:"destinationLat"`
	DestinationLng     *float64 `json:"destinationLng"`
	PickupAddress      string   `json:"pickupAddress"`
	DestinationAddress string   `json:"destinationAddress"`
	CabTypeID          string   `json:"cabTypeId"`
}

type patchTripRequest struct {
	Status    *string    `json:"status"`
	DriverID  *string    `json:"driverId"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

type tripResponse struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	DriverID           *string    `json:"driverId"`
	CabTypeID          string     `json:"cabTypeId"`
	PickupLat          float64    `json:"pickupLat"`
	PickupLng          float64    `json:"pickupLng"`
	DestinationLat     float64    `json:"destinationLat"`
	DestinationLng     float64    `json:"destinationLng"`
	PickupAddress      string     `json:"pickupAddress"`
	DestinationAddress string     `json:"destinationAddress"`
	Distance           float64    `json:"distance"`
	Price              float64    `json:"price"`
	Status             string     `json:"status"`
	StartTime          *time.Time `json:"startTime"`
	EndTime            *time.Time `json:"endTime"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func toTripResponse(t *trip.Trip) tripResponse {
	resp := tripResponse{
		ID:                 t.ID.String(),
		UserID:             t.UserID.String(),
		CabTypeID:          t.CabTypeID.String(),
		PickupLat:          t.Pickup.Lat,
		PickupLng:          t.Pickup.Lng,
		DestinationLat:     t.Destination.Lat,
		DestinationLng:     t.Destination.Lng,
		PickupAddress:      t.PickupAddress,
		DestinationAddress: t.DestinationAddress,
		Distance:           t.Distance,
		Price:              t.Price,
		Status:             string(t.Status),
		StartTime:          t.StartTime,
		EndTime:            t.EndTime,
		CreatedAt:          t.CreatedAt,
	}
	if t.DriverID != nil {
		d := t.DriverID.String()
		resp.DriverID = &d
	}
	return resp
}

func toTripResponses(trips []*trip.Trip) []tripResponse {
	out := make([]tripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, toTripResponse(t))
	}
	return out
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PickupLat == nil || req.PickupLng == nil || req.DestinationLat == nil || req.DestinationLng == nil {
		writeError(c, http.StatusBadRequest, "pickup and destination coordinates are required")
		return
	}
	t, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		UserID:             types.ID(middleware.CallerUID(c)),
		CabTypeID:          types.ID(req.CabTypeID),
		Pickup:             types.Point{Lat: *req.PickupLat, Lng: *req.PickupLng},
		Destination:        types.Point{Lat: *req.DestinationLat, Lng: *req.DestinationLng},
		PickupAddress:      req.PickupAddress,
		DestinationAddress: req.DestinationAddress,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toTripResponse(t))
}

func (h *TripHandler) List(c *gin.Context) {
	trips, err := h.trips.List(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponses(trips))
}

func (h *TripHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.trips.Get(c.Request.Context(), id, types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponse(t))
}

func (h *TripHandler) Events(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	events, err := h.trips.Events(c.Request.Context(), id, types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if events == nil {
		events = []trip.Event{}
	}
	writeJSON(c, http.StatusOK, events)
}

// Patch accepts only status, driverId, startTime and endTime; any other
// field is rejected.
func (h *TripHandler) Patch(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	var req patchTripRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: only status, driverId, startTime and endTime may be updated")
		return
	}

	cmd := trip.PatchCommand{
		TripID:    id,
		UserID:    types.ID(middleware.CallerUID(c)),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if req.Status != nil {
		st, err := trip.ParseStatus(*req.Status)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		cmd.Status = &st
	}
	if req.DriverID != nil {
		if !isValidID(*req.DriverID) {
			writeError(c, http.StatusBadRequest, "invalid driverId")
			return
		}
		d := types.ID(*req.DriverID)
		cmd.DriverID = &d
	}

	t, err := h.trips.UpdateStatus(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponse(t))
}

func (h *TripHandler) Start(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.trips.Start(c.Request.Context(), trip.StartCommand{TripID: id, UserID: types.ID(middleware.CallerUID(c))})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponse(t))
}

// Complete starts the trip first when needed, then completes it.
func (h *TripHandler) Complete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.trips.CompleteTrip(c.Request.Context(), id, types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponse(t))
}

func (h *TripHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.trips.Cancel(c.Request.Context(), trip.CancelCommand{TripID: id, UserID: types.ID(middleware.CallerUID(c))})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponse(t))
}
