// README: Driver aggregate and registry errors.
package driver

import (
	"fmt"
	"time"

	"ridequick/internal/types"
)

type Driver struct {
	ID           types.ID    `json:"id"`
	FullName     string      `json:"fullName"`
	Phone        string      `json:"phone"`
	LicensePlate string      `json:"licensePlate"`
	CarModel     string      `json:"carModel"`
	Rating       float64     `json:"rating"`
	IsAvailable  bool        `json:"isAvailable"`
	Location     types.Point `json:"currentLocation"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Nearby pairs a driver with its distance from the queried point.
type Nearby struct {
	Driver     *Driver `json:"driver"`
	DistanceKm float64 `json:"distanceKm"`
}

var (
	ErrNotFound    = fmt.Errorf("driver %w", types.ErrNotFound)
	ErrUnavailable = fmt.Errorf("driver already reserved: %w", types.ErrConflict)
	ErrBadRequest  = fmt.Errorf("driver %w", types.ErrInvalidInput)
)

const (
	minRating = 1.0
	maxRating = 5.0
	// seeded ratings fall in [seedRatingFloor, maxRating].
	seedRatingFloor = 4.5
	// fallbackCount is how many closest drivers FindNearby returns when the
	// radius is empty but some driver is available.
	fallbackCount = 3
)
