package trip

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridequick/internal/types"
)

func setupMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("RIDEQUICK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("RIDEQUICK_TEST_MONGO_URI not set; skipping Mongo-backed trip tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("ridequick_test")
	require.NoError(t, db.Collection("trips").Drop(ctx))
	require.NoError(t, db.Collection("trip_events").Drop(ctx))
	return NewMongoStore(db)
}

func TestMongoStore_UpdateIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := setupMongoStore(t)

	trip := &Trip{
		ID: types.NewID(), UserID: "u_mongo", CabTypeID: "cab", Pickup: pickup, Destination: destination,
		PickupAddress: "a", DestinationAddress: "b", Status: StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
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

	pending, err := store.ListPendingUnassigned(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
