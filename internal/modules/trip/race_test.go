// README: Concurrency tests for trip state transitions (run with -race).
package trip

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridequick/internal/types"
)

func TestConcurrentCancelVsComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.addDriver(t, "a", north(1))
	trip := f.create(t)
	require.Equal(t, StatusConfirmed, trip.Status)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.svc.Cancel(ctx, CancelCommand{TripID: trip.ID, UserID: rider})
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := f.svc.Complete(ctx, CompleteCommand{TripID: trip.ID, UserID: rider})
		errs <- err
	}()
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, success)

	got, err := f.svc.Get(ctx, trip.ID, rider)
	require.NoError(t, err)
	assert.True(t, got.Status.Terminal())
	assert.True(t, f.driver(t, d.ID).IsAvailable)
}

func TestConcurrentCreatesNeverShareDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const drivers = 3
	for i := 0; i < drivers; i++ {
		f.addDriver(t, string(rune('a'+i)), north(float64(i+1)))
	}

	const riders = 8
	trips := make(chan *Trip, riders)
	var wg sync.WaitGroup
	wg.Add(riders)
	for i := 0; i < riders; i++ {
		go func() {
			defer wg.Done()
			trip, err := f.svc.Create(ctx, CreateCommand{
				UserID: rider, CabTypeID: f.cab.ID, Pickup: pickup, Destination: destination,
				PickupAddress: "a", DestinationAddress: "b",
			})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			trips <- trip
		}()
	}
	wg.Wait()
	close(trips)

	seen := make(map[types.ID]bool)
	confirmed, pending := 0, 0
	for trip := range trips {
		switch trip.Status {
		case StatusConfirmed:
			confirmed++
			require.NotNil(t, trip.DriverID)
			assert.False(t, seen[*trip.DriverID], "driver %s assigned twice", *trip.DriverID)
			seen[*trip.DriverID] = true
		case StatusPending:
			pending++
		}
	}
	assert.Equal(t, drivers, confirmed)
	assert.Equal(t, riders-drivers, pending)
}

// PostgreSQL-backed store tests. They need a reachable database.

func TestPGStore_UpdateIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	trip := &Trip{
		ID:                 types.NewID(),
		UserID:             "u_pg",
		CabTypeID:          "cab_pg",
		Pickup:             pickup,
		Destination:        destination,
		PickupAddress:      "a",
		DestinationAddress: "b",
		Distance:           5.59,
		Price:              13.39,
		Status:             StatusPending,
		CreatedAt:          time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Create(ctx, trip))

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for _, to := range []Status{StatusCancelled, StatusConfirmed} {
		wg.Add(1)
		go func(to Status) {
			defer wg.Done()
			next := trip.clone()
			next.Status = to
			if to == StatusConfirmed {
				d := types.ID("d_pg")
				next.DriverID = &d
			}
			ok, err := store.Update(ctx, next, 0)
			if err != nil {
				t.Errorf("update: %v", err)
			}
			results <- ok
		}(to)
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	got, err := store.Get(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StatusVersion)

	_, err = store.Update(ctx, &Trip{ID: "missing"}, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.AppendEvent(ctx, &Event{
		TripID: trip.ID, FromStatus: StatusPending, ToStatus: got.Status, ActorType: ActorSystem, CreatedAt: time.Now(),
	}))
	events, err := store.Events(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, got.Status, events[0].ToStatus)
}

func TestPGStore_ListPendingUnassigned(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	base := time.Now().UTC().Truncate(time.Microsecond)
	var ids []types.ID
	for i := 0; i < 3; i++ {
		trip := &Trip{
			ID: types.NewID(), UserID: "u_list", CabTypeID: "cab", Pickup: pickup, Destination: destination,
			PickupAddress: "a", DestinationAddress: "b", Status: StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Create(ctx, trip))
		ids = append(ids, trip.ID)
	}

	pending, err := store.ListPendingUnassigned(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, ids[1], pending[1].ID)

	mine, err := store.ListByUser(ctx, "u_list")
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, ids[2], mine[0].ID)
}

func setupTestStore(t *testing.T) *PGStore {
	t.Helper()

	dsn := os.Getenv("RIDEQUICK_TEST_DSN")
	if dsn == "" {
		t.Skip("RIDEQUICK_TEST_DSN not set; skipping DB-backed trip tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE trip_events, trips"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewPGStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.up.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
