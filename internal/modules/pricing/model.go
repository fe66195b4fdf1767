// README: Cab type reference data and fare quote.
package pricing

import (
	"fmt"

	"ridequick/internal/types"
)

type CabType struct {
	ID              types.ID `json:"id" bson:"_id"`
	Name            string   `json:"name" bson:"name"`
	Description     string   `json:"description,omitempty" bson:"description,omitempty"`
	BasePrice       float64  `json:"basePrice" bson:"base_price"`
	PricePerKm      float64  `json:"pricePerKm" bson:"price_per_km"`
	SeatingCapacity int      `json:"seatingCapacity" bson:"seating_capacity"`
}

// Quote is the write-once distance and price for a trip.
type Quote struct {
	CabTypeID  types.ID `json:"cabTypeId"`
	DistanceKm float64  `json:"distance"`
	Price      float64  `json:"price"`
	EtaMinutes int      `json:"estimatedTime"`
}

var (
	ErrCabTypeNotFound = fmt.Errorf("cab type %w", types.ErrNotFound)
	ErrBadCabType      = fmt.Errorf("cab type %w", types.ErrInvalidInput)
)

func (c CabType) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrBadCabType)
	}
	if c.BasePrice < 0 || c.PricePerKm < 0 {
		return fmt.Errorf("%w: prices must be non-negative", ErrBadCabType)
	}
	if c.SeatingCapacity < 1 {
		return fmt.Errorf("%w: seating capacity must be at least 1", ErrBadCabType)
	}
	return nil
}
