// README: Trip service tests covering creation, assignment and every transition.
package trip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridequick/internal/config"
	"ridequick/internal/geo"
	"ridequick/internal/modules/driver"
	"ridequick/internal/modules/matching"
	"ridequick/internal/modules/pricing"
	"ridequick/internal/types"
)

var (
	pickup      = types.Point{Lat: 40.7128, Lng: -74.0060}
	destination = types.Point{Lat: 40.7580, Lng: -73.9855}
)

const rider = types.ID("rider-1")

// flakyDrivers lets a test make Release fail or run a hook once a release
// has gone through.
type flakyDrivers struct {
	*driver.Service
	mu           sync.Mutex
	failRelease  bool
	afterRelease func(id types.ID)
}

func (f *flakyDrivers) Release(ctx context.Context, id types.ID) (*driver.Driver, error) {
	f.mu.Lock()
	fail, hook := f.failRelease, f.afterRelease
	f.afterRelease = nil
	f.mu.Unlock()
	if fail {
		return nil, types.StorageErr("driver.mark_available", errors.New("connection reset"))
	}
	d, err := f.Service.Release(ctx, id)
	if err == nil && hook != nil {
		hook(id)
	}
	return d, err
}

func (f *flakyDrivers) setFailRelease(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRelease = v
}

// brokenStore fails the next failUpdates updates and, when failGet is set,
// every read.
type brokenStore struct {
	*MemoryStore
	mu          sync.Mutex
	failUpdates int
	failGet     bool
}

func (b *brokenStore) Update(ctx context.Context, t *Trip, expectedVersion int) (bool, error) {
	b.mu.Lock()
	fail := b.failUpdates > 0
	if fail {
		b.failUpdates--
	}
	b.mu.Unlock()
	if fail {
		return false, types.StorageErr("trip.update", errors.New("connection reset"))
	}
	return b.MemoryStore.Update(ctx, t, expectedVersion)
}

func (b *brokenStore) Get(ctx context.Context, id types.ID) (*Trip, error) {
	b.mu.Lock()
	fail := b.failGet
	b.mu.Unlock()
	if fail {
		return nil, types.StorageErr("trip.get", errors.New("connection reset"))
	}
	return b.MemoryStore.Get(ctx, id)
}

type fixture struct {
	svc      *Service
	store    *MemoryStore
	drivers  *flakyDrivers
	registry *driver.Service
	pricing  *pricing.Service
	cab      pricing.CabType
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	rnd := geo.NewLockedRand(42)

	registry := driver.NewService(driver.NewMemoryStore(), nil, rnd, nil)
	prices := pricing.NewService(pricing.NewMemoryStore(), nil)
	cab, err := prices.Create(ctx, pricing.CabType{Name: "Standard", BasePrice: 5, PricePerKm: 1.5, SeatingCapacity: 4})
	require.NoError(t, err)

	matcher := matching.NewService(registry, config.MatchingConfig{
		TickSeconds: 1, NearRadiusKm: 5, WideRadiusKm: 10, RetryBatch: 10,
	}, nil)

	f := &fixture{
		store:    NewMemoryStore(),
		drivers:  &flakyDrivers{Service: registry},
		registry: registry,
		pricing:  prices,
		cab:      cab,
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(Deps{
		Store:            f.store,
		Drivers:          f.drivers,
		Dispatcher:       matcher,
		Pricing:          prices,
		Rand:             rnd,
		ArrivalJitterDeg: 0.001,
	})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) addDriver(t *testing.T, name string, p types.Point) *driver.Driver {
	t.Helper()
	d, err := f.registry.Register(context.Background(), driver.RegisterCommand{
		FullName: name, Phone: "555-1000", LicensePlate: "ABC" + name, CarModel: "Toyota Camry", Location: p,
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) create(t *testing.T) *Trip {
	t.Helper()
	trip, err := f.svc.Create(context.Background(), CreateCommand{
		UserID:             rider,
		CabTypeID:          f.cab.ID,
		Pickup:             pickup,
		Destination:        destination,
		PickupAddress:      "Lower Manhattan",
		DestinationAddress: "Times Square",
	})
	require.NoError(t, err)
	return trip
}

func (f *fixture) driver(t *testing.T, id types.ID) *driver.Driver {
	t.Helper()
	d, err := f.registry.Get(context.Background(), id)
	require.NoError(t, err)
	return d
}

func north(km float64) types.Point {
	return types.Point{Lat: pickup.Lat + km/111.2, Lng: pickup.Lng}
}

func TestCanTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusConfirmed, StatusInProgress, StatusCancelled},
		StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled},
		StatusInProgress: {StatusCompleted, StatusCancelled},
	}
	all := []Status{StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusInProgress.Terminal())
}

func TestCreate_ConfirmsWithNearestDriver(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "four", north(4))
	nearest := f.addDriver(t, "two", north(2))
	f.addDriver(t, "three", north(3))

	trip := f.create(t)

	assert.Equal(t, StatusConfirmed, trip.Status)
	require.NotNil(t, trip.DriverID)
	assert.Equal(t, nearest.ID, *trip.DriverID)
	require.NotNil(t, trip.StartTime)
	assert.Equal(t, f.clock, *trip.StartTime)

	raw, err := geo.Distance(pickup, destination)
	require.NoError(t, err)
	assert.Equal(t, types.Round2(raw), trip.Distance)
	assert.Equal(t, pricing.Price(trip.Distance, f.cab), trip.Price)

	d := f.driver(t, nearest.ID)
	assert.False(t, d.IsAvailable)
	moved, err := geo.Distance(pickup, d.Location)
	require.NoError(t, err)
	assert.Less(t, moved, 0.25, "driver should be placed next to the pickup")

	stored, err := f.svc.Get(context.Background(), trip.ID, rider)
	require.NoError(t, err)
	assert.Equal(t, trip, stored)
}

func TestCreate_WideRadiusStillConfirms(t *testing.T) {
	f := newFixture(t)
	d := f.addDriver(t, "nine", north(9))

	trip := f.create(t)
	assert.Equal(t, StatusConfirmed, trip.Status)
	require.NotNil(t, trip.DriverID)
	assert.Equal(t, d.ID, *trip.DriverID)
}

func TestCreate_NoDriversLeavesPending(t *testing.T) {
	f := newFixture(t)

	trip := f.create(t)
	assert.Equal(t, StatusPending, trip.Status)
	assert.Nil(t, trip.DriverID)
	assert.Nil(t, trip.StartTime)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := CreateCommand{
		UserID: rider, CabTypeID: f.cab.ID, Pickup: pickup, Destination: destination,
		PickupAddress: "a", DestinationAddress: "b",
	}

	cmd := valid
	cmd.UserID = ""
	_, err := f.svc.Create(ctx, cmd)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	cmd = valid
	cmd.CabTypeID = ""
	_, err = f.svc.Create(ctx, cmd)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	cmd = valid
	cmd.DestinationAddress = " "
	_, err = f.svc.Create(ctx, cmd)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	cmd = valid
	cmd.Pickup = types.Point{Lat: 120, Lng: 0}
	_, err = f.svc.Create(ctx, cmd)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	cmd = valid
	cmd.CabTypeID = "missing"
	_, err = f.svc.Create(ctx, cmd)
	assert.ErrorIs(t, err, types.ErrNotFound)

	trips, err := f.svc.List(ctx, rider)
	require.NoError(t, err)
	assert.Empty(t, trips, "rejected requests must not persist anything")
}

func TestGet_Ownership(t *testing.T) {
	f := newFixture(t)
	trip := f.create(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, trip.ID, "someone-else")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Get(ctx, "missing", rider)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Cancel(ctx, CancelCommand{TripID: trip.ID, UserID: "someone-else"})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestList_NewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.create(t)
	f.advance(time.Minute)
	second := f.create(t)

	trips, err := f.svc.List(context.Background(), rider)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, second.ID, trips[0].ID)
	assert.Equal(t, first.ID, trips[1].ID)

	others, err := f.svc.List(context.Background(), "other")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestCancel_FromEveryActiveState(t *testing.T) {
	ctx := context.Background()

	t.Run("pending", func(t *testing.T) {
		f := newFixture(t)
		trip := f.create(t)
		got, err := f.svc.Cancel(ctx, CancelCommand{TripID: trip.ID, UserID: rider})
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
	})

	for _, start := range []bool{false, true} {
		name := "confirmed"
		if start {
			name = "in_progress"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			d := f.addDriver(t, "a", north(1))
			trip := f.create(t)
			if start {
				var err error
				trip, err = f.svc.Start(ctx, StartCommand{TripID: trip.ID, UserID: rider})
				require.NoError(t, err)
			}
			placed := f.driver(t, d.ID).Location

			got, err := f.svc.Cancel(ctx, CancelCommand{TripID: trip.ID, UserID: rider})
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, got.Status)

			after := f.driver(t, d.ID)
			assert.True(t, after.IsAvailable)
			assert.Equal(t, placed, after.Location, "cancel must not relocate the driver")
		})
	}
}

func TestCancel_SecondCallIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip := f.create(t)
	require.Equal(t, StatusPending, trip.Status)

	cancelled := StatusCancelled
	got, err := f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	_, err = f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, Status: &cancelled})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestComplete_RejectedOutsideConfirmedOrInProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("pending", func(t *testing.T) {
		f := newFixture(t)
		trip := f.create(t)
		_, err := f.svc.Complete(ctx, CompleteCommand{TripID: trip.ID, UserID: rider})
		assert.ErrorIs(t, err, types.ErrInvalidTransition)

		after, err := f.svc.Get(ctx, trip.ID, rider)
		require.NoError(t, err)
		assert.Equal(t, trip, after)
	})

	for _, terminal := range []Status{StatusCompleted, StatusCancelled} {
		t.Run(string(terminal), func(t *testing.T) {
			f := newFixture(t)
			f.addDriver(t, "a", north(1))
			trip := f.create(t)
			var err error
			if terminal == StatusCompleted {
				trip, err = f.svc.Complete(ctx, CompleteCommand{TripID: trip.ID, UserID: rider})
			} else {
				trip, err = f.svc.Cancel(ctx, CancelCommand{TripID: trip.ID, UserID: rider})
			}
			require.NoError(t, err)

			_, err = f.svc.Complete(ctx, CompleteCommand{TripID: trip.ID, UserID: rider})
			assert.ErrorIs(t, err, types.ErrInvalidTransition)

			after, err := f.svc.Get(ctx, trip.ID, rider)
			require.NoError(t, err)
			assert.Equal(t, trip, after)
		})
	}
}

func TestComplete_ReleasesAndRelocatesDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.addDriver(t, "a", north(1))
	trip := f.create(t)

	f.advance(10 * time.Minute)
	started, err := f.svc.Start(ctx, StartCommand{TripID: trip.ID, UserID: rider})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)
	assert.Equal(t, trip.StartTime, started.StartTime, "start keeps the confirmation time")

	f.advance(20 * time.Minute)
	done, err := f.svc.Complete(ctx, CompleteCommand{TripID: trip.ID, UserID: rider})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.EndTime)
	assert.False(t, done.EndTime.Before(*done.StartTime))

	after := f.driver(t, d.ID)
	assert.True(t, after.IsAvailable)
	assert.Equal(t, destination, after.Location)
}

func TestStart_RequiresDriver(t *testing.T) {
	f := newFixture(t)
	trip := f.create(t)

	_, err := f.svc.Start(context.Background(), StartCommand{TripID: trip.ID, UserID: rider})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestStart_HonoursExplicitTime(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "a", north(1))
	trip := f.create(t)
	at := f.clock.Add(5 * time.Minute)

	got, err := f.svc.Start(context.Background(), StartCommand{TripID: trip.ID, UserID: rider, StartTime: &at})
	require.NoError(t, err)
	assert.Equal(t, at, *got.StartTime)
}

func TestCompleteTrip_StartsThenCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.addDriver(t, "a", north(1))
	trip := f.create(t)

	got, err := f.svc.CompleteTrip(ctx, trip.ID, rider)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	events, err := f.svc.Events(ctx, trip.ID, rider)
	require.NoError(t, err)
	var path []Status
	for _, e := range events {
		path = append(path, e.ToStatus)
	}
	assert.Equal(t, []Status{StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted}, path)
	assert.True(t, f.driver(t, d.ID).IsAvailable)
}

func TestCompleteTrip_PendingWithoutDriver(t *testing.T) {
	f := newFixture(t)
	trip := f.create(t)
	_, err := f.svc.CompleteTrip(context.Background(), trip.ID, rider)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestUpdateStatus_Dispatch(t *testing.T) {
	ctx := context.Background()
	status := func(s Status) *Status { return &s }

	t.Run("in_progress then completed with explicit end", func(t *testing.T) {
		f := newFixture(t)
		f.addDriver(t, "a", north(1))
		trip := f.create(t)

		got, err := f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, Status: status(StatusInProgress)})
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, got.Status)

		end := f.clock.Add(time.Hour)
		got, err = f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, Status: status(StatusCompleted), EndTime: &end})
		require.NoError(t, err)
		assert.Equal(t, end, *got.EndTime)
	})

	t.Run("completed derives end time", func(t *testing.T) {
		f := newFixture(t)
		f.addDriver(t, "a", north(1))
		trip := f.create(t)
		f.advance(time.Minute)

		got, err := f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, Status: status(StatusCompleted)})
		require.NoError(t, err)
		require.NotNil(t, got.EndTime)
		assert.Equal(t, f.clock, *got.EndTime)
	})

	t.Run("end before start is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.addDriver(t, "a", north(1))
		trip := f.create(t)
		end := trip.StartTime.Add(-time.Minute)

		_, err := f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, Status: status(StatusCompleted), EndTime: &end})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("back to pending is invalid", func(t *testing.T) {
		f := newFixture(t)
		trip := f.create(t)
		_, err := f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, Status: status(StatusPending)})
		assert.ErrorIs(t, err, types.ErrInvalidTransition)
	})

	t.Run("empty patch", func(t *testing.T) {
		f := newFixture(t)
		trip := f.create(t)
		_, err := f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("driverId with other status", func(t *testing.T) {
		f := newFixture(t)
		trip := f.create(t)
		id := types.ID("d1")
		_, err := f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, Status: status(StatusCancelled), DriverID: &id})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("driverId confirms pending trip", func(t *testing.T) {
		f := newFixture(t)
		trip := f.create(t)
		require.Equal(t, StatusPending, trip.Status)
		d := f.addDriver(t, "late", north(2))

		got, err := f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, DriverID: &d.ID})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, got.Status)
		assert.Equal(t, d.ID, *got.DriverID)
		assert.False(t, f.driver(t, d.ID).IsAvailable)
	})

	t.Run("confirm without drivers", func(t *testing.T) {
		f := newFixture(t)
		trip := f.create(t)
		_, err := f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, Status: status(StatusConfirmed)})
		assert.ErrorIs(t, err, matching.ErrNoDriverAvailable)
	})

	t.Run("confirm with reserved driver", func(t *testing.T) {
		f := newFixture(t)
		trip := f.create(t)
		d := f.addDriver(t, "busy", north(2))
		_, err := f.registry.Reserve(ctx, d.ID)
		require.NoError(t, err)

		_, err = f.svc.UpdateStatus(ctx, PatchCommand{TripID: trip.ID, UserID: rider, DriverID: &d.ID})
		assert.ErrorIs(t, err, driver.ErrUnavailable)

		after, err := f.svc.Get(ctx, trip.ID, rider)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, after.Status)
	})
}

func TestCancel_ReleaseFailureRestoresTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.addDriver(t, "a", north(1))
	trip := f.create(t)
	require.Equal(t, StatusConfirmed, trip.Status)

	f.drivers.setFailRelease(true)
	_, err := f.svc.Cancel(ctx, CancelCommand{TripID: trip.ID, UserID: rider})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStorage)

	after, err := f.svc.Get(ctx, trip.ID, rider)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, after.Status)
	assert.False(t, f.driver(t, d.ID).IsAvailable)

	f.drivers.setFailRelease(false)
	got, err := f.svc.Cancel(ctx, CancelCommand{TripID: trip.ID, UserID: rider})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.True(t, f.driver(t, d.ID).IsAvailable)
}

func TestCreate_AssignFailureLeavesPendingAndFreesDriver(t *testing.T) {
	f := newFixture(t)
	d := f.addDriver(t, "a", north(1))
	f.svc.store = &brokenStore{MemoryStore: f.store, failUpdates: 1, failGet: true}

	trip := f.create(t)
	assert.Equal(t, StatusPending, trip.Status)
	assert.Nil(t, trip.DriverID)
	assert.True(t, f.driver(t, d.ID).IsAvailable)

	stored, err := f.store.Get(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestCreate_FailedCompensatingReleaseIsReturned(t *testing.T) {
	f := newFixture(t)
	d := f.addDriver(t, "a", north(1))
	f.svc.store = &brokenStore{MemoryStore: f.store, failUpdates: 1}
	f.drivers.setFailRelease(true)

	trip, err := f.svc.Create(context.Background(), CreateCommand{
		UserID:             rider,
		CabTypeID:          f.cab.ID,
		Pickup:             pickup,
		Destination:        destination,
		PickupAddress:      "Lower Manhattan",
		DestinationAddress: "Times Square",
	})
	require.Error(t, err)
	assert.Nil(t, trip)
	assert.ErrorIs(t, err, types.ErrStorage)
	assert.ErrorIs(t, err, errReleaseFailed)
	assert.False(t, f.driver(t, d.ID).IsAvailable)
}

func TestComplete_DriverReassignedOnReleaseKeepsNewPickup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.addDriver(t, "a", north(1))
	first := f.create(t)
	require.Equal(t, d.ID, *first.DriverID)

	nextPickup := north(2)
	var second *Trip
	f.drivers.afterRelease = func(types.ID) {
		var err error
		second, err = f.svc.Create(ctx, CreateCommand{
			UserID:             rider,
			CabTypeID:          f.cab.ID,
			Pickup:             nextPickup,
			Destination:        destination,
			PickupAddress:      "Chinatown",
			DestinationAddress: "Times Square",
		})
		require.NoError(t, err)
	}

	_, err := f.svc.CompleteTrip(ctx, first.ID, rider)
	require.NoError(t, err)

	require.NotNil(t, second)
	require.Equal(t, StatusConfirmed, second.Status)
	assert.Equal(t, d.ID, *second.DriverID)

	after := f.driver(t, d.ID)
	assert.False(t, after.IsAvailable)
	km, err := geo.Distance(after.Location, nextPickup)
	require.NoError(t, err)
	assert.Less(t, km, 0.5, "driver stays near the second pickup")
}

func TestRetryPending_AssignsLateDrivers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t)
	f.advance(time.Second)
	second := f.create(t)
	require.Equal(t, StatusPending, first.Status)

	d := f.addDriver(t, "late", north(1))
	n, err := f.svc.RetryPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, first.ID, rider)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status, "oldest pending trip is served first")
	assert.Equal(t, d.ID, *got.DriverID)

	got, err = f.svc.Get(ctx, second.ID, rider)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	trips, err := f.svc.ListForDriver(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, first.ID, trips[0].ID)
}

func TestEvents_PublishedForEachTransition(t *testing.T) {
	f := newFixture(t)
	pub := &capturePublisher{}
	f.svc.events = pub
	f.addDriver(t, "a", north(1))

	trip := f.create(t)
	_, err := f.svc.Cancel(context.Background(), CancelCommand{TripID: trip.ID, UserID: rider})
	require.NoError(t, err)

	require.Len(t, pub.events, 3)
	assert.Equal(t, StatusNone, pub.events[0].FromStatus)
	assert.Equal(t, StatusConfirmed, pub.events[1].ToStatus)
	assert.Equal(t, ActorSystem, pub.events[1].ActorType)
	assert.Equal(t, StatusCancelled, pub.events[2].ToStatus)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (c *capturePublisher) Publish(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}
