// README: Trip service implements creation, auto-assignment and state transitions.
package trip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ridequick/internal/geo"
	"ridequick/internal/modules/driver"
	"ridequick/internal/modules/matching"
	"ridequick/internal/modules/pricing"
	"ridequick/internal/types"
)

type Drivers interface {
	Reserve(ctx context.Context, id types.ID) (*driver.Driver, error)
	Release(ctx context.Context, id types.ID) (*driver.Driver, error)
	Relocate(ctx context.Context, id types.ID, p types.Point) (*driver.Driver, error)
}

type Dispatcher interface {
	Assign(ctx context.Context, pickup types.Point) (*matching.Assignment, error)
}

type Pricing interface {
	Quote(ctx context.Context, cabTypeID types.ID, from, to types.Point) (pricing.Quote, error)
}

type Deps struct {
	Store      Store
	Drivers    Drivers
	Dispatcher Dispatcher
	Pricing    Pricing
	Events     EventPublisher
	Rand       geo.Rand
	Logger     *zap.Logger
	// ArrivalJitterDeg bounds where an assigned driver is placed around the pickup.
	ArrivalJitterDeg float64
}

type Service struct {
	store      Store
	drivers    Drivers
	dispatcher Dispatcher
	pricing    Pricing
	events     EventPublisher
	rnd        geo.Rand
	log        *zap.Logger
	jitterDeg  float64
	now        func() time.Time
}

func NewService(deps Deps) *Service {
	s := &Service{
		store:      deps.Store,
		drivers:    deps.Drivers,
		dispatcher: deps.Dispatcher,
		pricing:    deps.Pricing,
		events:     deps.Events,
		rnd:        deps.Rand,
		log:        deps.Logger,
		jitterDeg:  deps.ArrivalJitterDeg,
		now:        time.Now,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

type CreateCommand struct {
	UserID             types.ID
	CabTypeID          types.ID
	Pickup             types.Point
	Destination        types.Point
	PickupAddress      string
	DestinationAddress string
}

type StartCommand struct {
	TripID    types.ID
	UserID    types.ID
	StartTime *time.Time
}

type CompleteCommand struct {
	TripID  types.ID
	UserID  types.ID
	EndTime *time.Time
}

type CancelCommand struct {
	TripID types.ID
	UserID types.ID
}

// PatchCommand carries the only fields a caller may change on a trip. A nil
// field is left alone.
type PatchCommand struct {
	TripID    types.ID
	UserID    types.ID
	Status    *Status
	DriverID  *types.ID
	StartTime *time.Time
	EndTime   *time.Time
}

// Create prices and persists a pending trip, then tries to assign a driver.
// Having no driver available is not an error: the trip is returned pending.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Trip, error) {
	if cmd.UserID == "" {
		return nil, ErrForbidden
	}
	if cmd.CabTypeID == "" {
		return nil, fmt.Errorf("%w: cabTypeId is required", ErrBadRequest)
	}
	if strings.TrimSpace(cmd.PickupAddress) == "" || strings.TrimSpace(cmd.DestinationAddress) == "" {
		return nil, fmt.Errorf("%w: pickup and destination addresses are required", ErrBadRequest)
	}
	if err := geo.Validate(cmd.Pickup); err != nil {
		return nil, err
	}
	if err := geo.Validate(cmd.Destination); err != nil {
		return nil, err
	}

	quote, err := s.pricing.Quote(ctx, cmd.CabTypeID, cmd.Pickup, cmd.Destination)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Trip{
		ID:                 types.NewID(),
		UserID:             cmd.UserID,
		CabTypeID:          cmd.CabTypeID,
		Pickup:             cmd.Pickup,
		Destination:        cmd.Destination,
		PickupAddress:      cmd.PickupAddress,
		DestinationAddress: cmd.DestinationAddress,
		Distance:           quote.DistanceKm,
		Price:              quote.Price,
		Status:             StatusPending,
		CreatedAt:          now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	userID := cmd.UserID
	s.record(ctx, t, StatusNone, StatusPending, ActorUser, &userID)

	assigned, err := s.autoAssign(ctx, t)
	if errors.Is(err, errReleaseFailed) {
		// A driver is held with no trip attached; the scheduler cannot free it.
		return nil, err
	}
	if err != nil {
		// The trip exists; the retry scheduler picks it up later.
		s.log.Error("auto-assign failed", zap.String("trip_id", string(t.ID)), zap.Error(err))
		return t, nil
	}
	return assigned, nil
}

func (s *Service) List(ctx context.Context, userID types.ID) ([]*Trip, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) ListForDriver(ctx context.Context, driverID types.ID) ([]*Trip, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver id is required", ErrBadRequest)
	}
	return s.store.ListByDriver(ctx, driverID)
}

func (s *Service) Get(ctx context.Context, id, userID types.ID) (*Trip, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID == "" || t.UserID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *Service) Events(ctx context.Context, id, userID types.ID) ([]Event, error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.store.Events(ctx, id)
}

// Start moves a confirmed trip, or a pending one that already has a driver,
// to in_progress. StartTime keeps an earlier value unless one is supplied.
func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Trip, error) {
	t, err := s.Get(ctx, cmd.TripID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, t, cmd.UserID, cmd.StartTime)
}

func (s *Service) start(ctx context.Context, t *Trip, actor types.ID, at *time.Time) (*Trip, error) {
	if t.Status == StatusPending && t.DriverID == nil {
		return nil, fmt.Errorf("%w: no driver attached", ErrInvalidState)
	}
	return s.transition(ctx, t, StatusInProgress, actor, func(next *Trip) error {
		switch {
		case at != nil:
			v := at.UTC()
			next.StartTime = &v
		case next.StartTime == nil:
			v := s.now().UTC()
			next.StartTime = &v
		}
		return nil
	})
}

// Complete finishes a confirmed or in-progress trip, then frees its driver
// and moves them to the destination. If the driver cannot be freed the trip
// is put back the way it was and the error is returned.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Trip, error) {
	t, err := s.Get(ctx, cmd.TripID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, t, cmd.UserID, nil, cmd.EndTime)
}

func (s *Service) complete(ctx context.Context, t *Trip, actor types.ID, startAt, endAt *time.Time) (*Trip, error) {
	return s.finish(ctx, t, StatusCompleted, actor, func(next *Trip) error {
		if startAt != nil {
			v := startAt.UTC()
			next.StartTime = &v
		}
		end := s.now().UTC()
		if endAt != nil {
			end = endAt.UTC()
		}
		if next.StartTime != nil && end.Before(*next.StartTime) {
			return fmt.Errorf("%w: endTime precedes startTime", ErrBadRequest)
		}
		next.EndTime = &end
		return nil
	}, &t.Destination)
}

// Cancel ends any active trip and frees the attached driver in place.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Trip, error) {
	t, err := s.Get(ctx, cmd.TripID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, t, StatusCancelled, cmd.UserID, nil, nil)
}

// CompleteTrip starts the trip first when it has not been started, then
// completes it.
func (s *Service) CompleteTrip(ctx context.Context, tripID, userID types.ID) (*Trip, error) {
	t, err := s.Get(ctx, tripID, userID)
	if err != nil {
		return nil, err
	}
	if t.Status == StatusConfirmed || (t.Status == StatusPending && t.DriverID != nil) {
		if t, err = s.start(ctx, t, userID, nil); err != nil {
			return nil, err
		}
	}
	return s.complete(ctx, t, userID, nil, nil)
}

// UpdateStatus applies a partial update by dispatching to the named
// transitions. A driverId alone, or status=confirmed, assigns a driver to a
// pending trip.
func (s *Service) UpdateStatus(ctx context.Context, cmd PatchCommand) (*Trip, error) {
	t, err := s.Get(ctx, cmd.TripID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	status := StatusNone
	if cmd.Status != nil {
		status = *cmd.Status
	} else if cmd.DriverID != nil {
		status = StatusConfirmed
	}
	if cmd.DriverID != nil && status != StatusConfirmed {
		return nil, fmt.Errorf("%w: driverId can only be set when confirming", ErrBadRequest)
	}

	switch status {
	case StatusNone:
		return nil, fmt.Errorf("%w: status is required", ErrBadRequest)
	case StatusConfirmed:
		return s.confirm(ctx, t, cmd.UserID, cmd.DriverID)
	case StatusInProgress:
		if cmd.EndTime != nil {
			return nil, fmt.Errorf("%w: endTime only applies when completing", ErrBadRequest)
		}
		return s.start(ctx, t, cmd.UserID, cmd.StartTime)
	case StatusCompleted:
		return s.complete(ctx, t, cmd.UserID, cmd.StartTime, cmd.EndTime)
	case StatusCancelled:
		return s.finish(ctx, t, StatusCancelled, cmd.UserID, nil, nil)
	case StatusPending:
		return nil, fmt.Errorf("%w: cannot move %s trip back to pending", ErrInvalidState, t.Status)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadRequest, status)
	}
}

// RetryPending runs auto-assignment for up to limit pending trips that have
// no driver and reports how many were confirmed.
func (s *Service) RetryPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.store.ListPendingUnassigned(ctx, limit)
	if err != nil {
		return 0, err
	}
	confirmed := 0
	var errs []error
	for _, t := range pending {
		if ctx.Err() != nil {
			break
		}
		got, err := s.autoAssign(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("trip %s: %w", t.ID, err))
			continue
		}
		if got.Status == StatusConfirmed {
			confirmed++
		}
	}
	return confirmed, errors.Join(errs...)
}

// confirm assigns a driver to a pending trip: the named driver when given,
// otherwise the dispatcher's pick.
func (s *Service) confirm(ctx context.Context, t *Trip, actor types.ID, driverID *types.ID) (*Trip, error) {
	if t.Status != StatusPending || t.DriverID != nil {
		return nil, fmt.Errorf("%w: %s trip cannot be confirmed", ErrInvalidState, t.Status)
	}
	if driverID == nil {
		got, err := s.autoAssign(ctx, t)
		if err != nil {
			return nil, err
		}
		if got.Status != StatusConfirmed {
			return nil, matching.ErrNoDriverAvailable
		}
		return got, nil
	}
	d, err := s.drivers.Reserve(ctx, *driverID)
	if err != nil {
		return nil, err
	}
	return s.attach(ctx, t, d, ActorUser, &actor)
}

// autoAssign returns t unchanged when no driver is available.
func (s *Service) autoAssign(ctx context.Context, t *Trip) (*Trip, error) {
	a, err := s.dispatcher.Assign(ctx, t.Pickup)
	if errors.Is(err, matching.ErrNoDriverAvailable) {
		s.log.Info("no driver available, trip left pending", zap.String("trip_id", string(t.ID)))
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	return s.attach(ctx, t, a.Driver, ActorSystem, nil)
}

// attach confirms t with an already reserved driver. If the trip changed
// underneath, the reservation is released before returning.
func (s *Service) attach(ctx context.Context, t *Trip, d *driver.Driver, actorType string, actor *types.ID) (*Trip, error) {
	if !CanTransition(t.Status, StatusConfirmed) {
		return nil, s.releaseAfter(ctx, d.ID, fmt.Errorf("%w: %s -> %s", ErrInvalidState, t.Status, StatusConfirmed))
	}
	next := t.clone()
	now := s.now().UTC()
	id := d.ID
	next.Status = StatusConfirmed
	next.DriverID = &id
	next.StartTime = &now

	ok, err := s.store.Update(ctx, next, t.StatusVersion)
	if err != nil {
		return nil, s.releaseAfter(ctx, d.ID, err)
	}
	if !ok {
		return nil, s.releaseAfter(ctx, d.ID, ErrConflict)
	}
	next.StatusVersion = t.StatusVersion + 1

	arrival := geo.Jitter(t.Pickup, s.jitterDeg, s.rnd)
	if _, err := s.drivers.Relocate(ctx, d.ID, arrival); err != nil {
		s.log.Warn("relocate driver to pickup failed",
			zap.String("trip_id", string(t.ID)), zap.String("driver_id", string(d.ID)), zap.Error(err))
	}
	s.record(ctx, next, t.Status, StatusConfirmed, actorType, actor)
	return next, nil
}

var errReleaseFailed = errors.New("compensating release failed")

// releaseAfter undoes a reservation after cause and returns cause, joined
// with errReleaseFailed if the driver could not be freed.
func (s *Service) releaseAfter(ctx context.Context, driverID types.ID, cause error) error {
	if _, err := s.drivers.Release(ctx, driverID); err != nil {
		s.log.Error("compensating release failed", zap.String("driver_id", string(driverID)), zap.Error(err))
		return errors.Join(cause, fmt.Errorf("%w: driver %s: %w", errReleaseFailed, driverID, err))
	}
	return cause
}

// finish moves t to a terminal status and frees its driver, relocating them
// first when relocateTo is set. The move happens while the driver is still
// reserved so nobody else can have picked them up. A failed release restores
// the previous trip state.
func (s *Service) finish(ctx context.Context, t *Trip, to Status, actor types.ID, mutate func(*Trip) error, relocateTo *types.Point) (*Trip, error) {
	if !CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, t.Status, to)
	}
	next := t.clone()
	next.Status = to
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	ok, err := s.store.Update(ctx, next, t.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	next.StatusVersion = t.StatusVersion + 1

	if t.DriverID != nil {
		if relocateTo != nil {
			if _, err := s.drivers.Relocate(ctx, *t.DriverID, *relocateTo); err != nil {
				s.log.Warn("relocate driver to destination failed",
					zap.String("trip_id", string(t.ID)), zap.String("driver_id", string(*t.DriverID)), zap.Error(err))
			}
		}
		if _, err := s.drivers.Release(ctx, *t.DriverID); err != nil {
			return nil, s.restore(ctx, t, next, fmt.Errorf("release driver %s: %w", *t.DriverID, err))
		}
	}
	s.record(ctx, next, t.Status, to, ActorUser, &actor)
	return next, nil
}

// restore writes prev's mutable fields back over cur so the failed operation
// can be retried.
func (s *Service) restore(ctx context.Context, prev, cur *Trip, cause error) error {
	back := prev.clone()
	ok, err := s.store.Update(ctx, back, cur.StatusVersion)
	if err != nil {
		return errors.Join(cause, fmt.Errorf("restore trip %s: %w", prev.ID, err))
	}
	if !ok {
		return errors.Join(cause, fmt.Errorf("restore trip %s: %w", prev.ID, ErrConflict))
	}
	return cause
}

func (s *Service) transition(ctx context.Context, t *Trip, to Status, actor types.ID, mutate func(*Trip) error) (*Trip, error) {
	if !CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, t.Status, to)
	}
	next := t.clone()
	next.Status = to
	if err := mutate(next); err != nil {
		return nil, err
	}
	ok, err := s.store.Update(ctx, next, t.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	next.StatusVersion = t.StatusVersion + 1
	s.record(ctx, next, t.Status, to, ActorUser, &actor)
	return next, nil
}

// record appends and publishes a transition. Failures are logged only; the
// transition itself has already been committed.
func (s *Service) record(ctx context.Context, t *Trip, from, to Status, actorType string, actor *types.ID) {
	e := &Event{
		TripID:     t.ID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actor,
		DriverID:   t.DriverID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		s.log.Warn("append trip event failed", zap.String("trip_id", string(t.ID)), zap.Error(err))
	}
	if err := s.events.Publish(ctx, *e); err != nil {
		s.log.Warn("publish trip event failed", zap.String("trip_id", string(t.ID)), zap.Error(err))
	}
}
