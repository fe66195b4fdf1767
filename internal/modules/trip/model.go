// README: Trip aggregate, status definitions and the transition table.
package trip

import (
	"fmt"
	"time"

	"ridequick/internal/types"
)

type Status string

const (
	StatusNone       Status = ""
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return StatusNone, fmt.Errorf("%w: unknown status %q", ErrBadRequest, s)
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Trip struct {
	ID                 types.ID
	UserID             types.ID
	DriverID           *types.ID
	CabTypeID          types.ID
	Pickup             types.Point
	Destination        types.Point
	PickupAddress      string
	DestinationAddress string
	Distance           float64
	Price              float64
	Status             Status
	StatusVersion      int
	StartTime          *time.Time
	EndTime            *time.Time
	CreatedAt          time.Time
}

func (t *Trip) clone() *Trip {
	cp := *t
	if t.DriverID != nil {
		d := *t.DriverID
		cp.DriverID = &d
	}
	if t.StartTime != nil {
		s := *t.StartTime
		cp.StartTime = &s
	}
	if t.EndTime != nil {
		e := *t.EndTime
		cp.EndTime = &e
	}
	return &cp
}

const (
	ActorUser   = "user"
	ActorSystem = "system"
)

// Event records one status change of a trip.
type Event struct {
	ID         int64     `json:"-"`
	TripID     types.ID  `json:"tripId"`
	FromStatus Status    `json:"from"`
	ToStatus   Status    `json:"to"`
	ActorType  string    `json:"actorType"`
	ActorID    *types.ID `json:"actorId,omitempty"`
	DriverID   *types.ID `json:"driverId,omitempty"`
	CreatedAt  time.Time `json:"at"`
}

// AllowedTransitions represents the trip state flow as code. pending ->
// in_progress additionally requires an attached driver.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusInProgress, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

var (
	ErrNotFound     = fmt.Errorf("trip %w", types.ErrNotFound)
	ErrBadRequest   = fmt.Errorf("trip %w", types.ErrInvalidInput)
	ErrForbidden    = fmt.Errorf("trip access %w", types.ErrUnauthorized)
	ErrInvalidState = fmt.Errorf("trip %w", types.ErrInvalidTransition)
	ErrConflict     = fmt.Errorf("trip %w", types.ErrConflict)
)
