// README: Trip store backed by MongoDB collections.
package trip

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridequick/internal/types"
)

type MongoStore struct {
	trips  *mongo.Collection
	events *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		trips:  db.Collection("trips"),
		events: db.Collection("trip_events"),
	}
}

type tripDoc struct {
	ID                 string      `bson:"_id"`
	UserID             string      `bson:"user_id"`
	DriverID           *string     `bson:"driver_id"`
	CabTypeID          string      `bson:"cab_type_id"`
	Pickup             types.Point `bson:"pickup_location"`
	Destination        types.Point `bson:"destination_location"`
	PickupAddress      string      `bson:"pickup_address"`
	DestinationAddress string      `bson:"destination_address"`
	Distance           float64     `bson:"distance"`
	Price              float64     `bson:"price"`
	Status             string      `bson:"status"`
	StatusVersion      int         `bson:"status_version"`
	StartTime          *time.Time  `bson:"start_time"`
	EndTime            *time.Time  `bson:"end_time"`
	CreatedAt          time.Time   `bson:"created_at"`
	Seq                int64       `bson:"seq"`
}

func toTripDoc(t *Trip) tripDoc {
	return tripDoc{
		ID:                 string(t.ID),
		UserID:             string(t.UserID),
		DriverID:           toStringPtr(t.DriverID),
		CabTypeID:          string(t.CabTypeID),
		Pickup:             t.Pickup,
		Destination:        t.Destination,
		PickupAddress:      t.PickupAddress,
		DestinationAddress: t.DestinationAddress,
		Distance:           t.Distance,
		Price:              t.Price,
		Status:             string(t.Status),
		StatusVersion:      t.StatusVersion,
		StartTime:          t.StartTime,
		EndTime:            t.EndTime,
		CreatedAt:          t.CreatedAt,
		Seq:                t.CreatedAt.UnixNano(),
	}
}

func (doc tripDoc) toTrip() *Trip {
	t := &Trip{
		ID:                 types.ID(doc.ID),
		UserID:             types.ID(doc.UserID),
		CabTypeID:          types.ID(doc.CabTypeID),
		Pickup:             doc.Pickup,
		Destination:        doc.Destination,
		PickupAddress:      doc.PickupAddress,
		DestinationAddress: doc.DestinationAddress,
		Distance:           doc.Distance,
		Price:              doc.Price,
		Status:             Status(doc.Status),
		StatusVersion:      doc.StatusVersion,
		StartTime:          doc.StartTime,
		EndTime:            doc.EndTime,
		CreatedAt:          doc.CreatedAt,
	}
	if doc.DriverID != nil {
		id := types.ID(*doc.DriverID)
		t.DriverID = &id
	}
	return t
}

func (s *MongoStore) Create(ctx context.Context, t *Trip) error {
	_, err := s.trips.InsertOne(ctx, toTripDoc(t))
	return types.StorageErr("trip.create", err)
}

func (s *MongoStore) Get(ctx context.Context, id types.ID) (*Trip, error) {
	var doc tripDoc
	err := s.trips.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.StorageErr("trip.get", err)
	}
	return doc.toTrip(), nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID types.ID) ([]*Trip, error) {
	return s.find(ctx, "trip.list_by_user", bson.M{"user_id": string(userID)},
		options.Find().SetSort(bson.D{{Key: "seq", Value: -1}}))
}

func (s *MongoStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error) {
	return s.find(ctx, "trip.list_by_driver", bson.M{"driver_id": string(driverID)},
		options.Find().SetSort(bson.D{{Key: "seq", Value: -1}}))
}

func (s *MongoStore) ListPendingUnassigned(ctx context.Context, limit int) ([]*Trip, error) {
	filter := bson.M{"status": string(StatusPending), "driver_id": nil}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}).SetLimit(int64(limit))
	return s.find(ctx, "trip.list_pending", filter, opts)
}

func (s *MongoStore) Update(ctx context.Context, t *Trip, expectedVersion int) (bool, error) {
	res, err := s.trips.UpdateOne(ctx,
		bson.M{"_id": string(t.ID), "status_version": expectedVersion},
		bson.M{
			"$set": bson.M{
				"status":     string(t.Status),
				"driver_id":  toStringPtr(t.DriverID),
				"start_time": t.StartTime,
				"end_time":   t.EndTime,
			},
			"$inc": bson.M{"status_version": 1},
		},
	)
	if err != nil {
		return false, types.StorageErr("trip.update", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, t.ID); err != nil {
		return false, err
	}
	return false, nil
}

type eventDoc struct {
	TripID     string    `bson:"trip_id"`
	FromStatus string    `bson:"from_status"`
	ToStatus   string    `bson:"to_status"`
	ActorType  string    `bson:"actor_type"`
	ActorID    *string   `bson:"actor_id,omitempty"`
	DriverID   *string   `bson:"driver_id,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
	Seq        int64     `bson:"seq"`
}

func (s *MongoStore) AppendEvent(ctx context.Context, e *Event) error {
	seq := time.Now().UnixNano()
	_, err := s.events.InsertOne(ctx, eventDoc{
		TripID:     string(e.TripID),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		ActorType:  e.ActorType,
		ActorID:    toStringPtr(e.ActorID),
		DriverID:   toStringPtr(e.DriverID),
		CreatedAt:  e.CreatedAt,
		Seq:        seq,
	})
	if err != nil {
		return types.StorageErr("trip.append_event", err)
	}
	e.ID = seq
	return nil
}

func (s *MongoStore) Events(ctx context.Context, tripID types.ID) ([]Event, error) {
	cur, err := s.events.Find(ctx, bson.M{"trip_id": string(tripID)},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, types.StorageErr("trip.events", err)
	}
	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, types.StorageErr("trip.events", err)
	}
	out := make([]Event, 0, len(docs))
	for _, d := range docs {
		e := Event{
			ID:         d.Seq,
			TripID:     types.ID(d.TripID),
			FromStatus: Status(d.FromStatus),
			ToStatus:   Status(d.ToStatus),
			ActorType:  d.ActorType,
			CreatedAt:  d.CreatedAt,
		}
		if d.ActorID != nil {
			id := types.ID(*d.ActorID)
			e.ActorID = &id
		}
		if d.DriverID != nil {
			id := types.ID(*d.DriverID)
			e.DriverID = &id
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MongoStore) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]*Trip, error) {
	cur, err := s.trips.Find(ctx, filter, opts)
	if err != nil {
		return nil, types.StorageErr(op, err)
	}
	var docs []tripDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, types.StorageErr(op, err)
	}
	out := make([]*Trip, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toTrip())
	}
	return out, nil
}
