// README: Matching stages and the collaborators the matcher depends on.
package matching

import (
	"context"
	"fmt"

	"ridequick/internal/modules/driver"
	"ridequick/internal/types"
)

// Registry is the subset of the driver registry used for assignment.
type Registry interface {
	FindNearby(ctx context.Context, p types.Point, radiusKm float64) ([]driver.Nearby, error)
	ListAvailable(ctx context.Context) ([]*driver.Driver, error)
	Reserve(ctx context.Context, id types.ID) (*driver.Driver, error)
}

// PendingRetrier re-runs assignment for trips still waiting on a driver and
// reports how many were confirmed.
type PendingRetrier interface {
	RetryPending(ctx context.Context, limit int) (int, error)
}

type Stage string

const (
	StageNear Stage = "near"
	StageWide Stage = "wide"
	StageAny  Stage = "any"
)

// Assignment is a reserved driver and the stage that produced it.
type Assignment struct {
	Driver     *driver.Driver
	DistanceKm float64
	Stage      Stage
}

var ErrNoDriverAvailable = fmt.Errorf("no driver available: %w", types.ErrConflict)
