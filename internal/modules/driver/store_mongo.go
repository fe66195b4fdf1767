// README: Driver store backed by a MongoDB collection (document backend).
package driver

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridequick/internal/geo"
	"ridequick/internal/types"
)

type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("drivers")}
}

// driverDoc keeps the bson layout independent from the domain struct; the
// opaque id is stored as a string _id.
type driverDoc struct {
	ID           string      `bson:"_id"`
	FullName     string      `bson:"full_name"`
	Phone        string      `bson:"phone"`
	LicensePlate string      `bson:"license_plate"`
	CarModel     string      `bson:"car_model"`
	Rating       float64     `bson:"rating"`
	IsAvailable  bool        `bson:"is_available"`
	Location     types.Point `bson:"current_location"`
	Geohash      string      `bson:"geohash"`
	CreatedAt    time.Time   `bson:"created_at"`
	// Seq orders drivers by creation; bson dates only keep milliseconds.
	Seq int64 `bson:"seq"`
}

func toDriverDoc(d *Driver) driverDoc {
	return driverDoc{
		ID:           string(d.ID),
		FullName:     d.FullName,
		Phone:        d.Phone,
		LicensePlate: d.LicensePlate,
		CarModel:     d.CarModel,
		Rating:       d.Rating,
		IsAvailable:  d.IsAvailable,
		Location:     d.Location,
		Geohash:      cellOf(d.Location),
		CreatedAt:    d.CreatedAt,
		Seq:          d.CreatedAt.UnixNano(),
	}
}

func (doc driverDoc) toDriver() *Driver {
	return &Driver{
		ID:           types.ID(doc.ID),
		FullName:     doc.FullName,
		Phone:        doc.Phone,
		LicensePlate: doc.LicensePlate,
		CarModel:     doc.CarModel,
		Rating:       doc.Rating,
		IsAvailable:  doc.IsAvailable,
		Location:     doc.Location,
		CreatedAt:    doc.CreatedAt,
	}
}

func (s *MongoStore) Create(ctx context.Context, d *Driver) error {
	_, err := s.col.InsertOne(ctx, toDriverDoc(d))
	return types.StorageErr("driver.create", err)
}

func (s *MongoStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	var doc driverDoc
	err := s.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.StorageErr("driver.get", err)
	}
	return doc.toDriver(), nil
}

func (s *MongoStore) List(ctx context.Context) ([]*Driver, error) {
	return s.find(ctx, "driver.list", bson.M{})
}

func (s *MongoStore) ListAvailable(ctx context.Context) ([]*Driver, error) {
	return s.find(ctx, "driver.list_available", bson.M{"is_available": true})
}

func (s *MongoStore) FindAvailableWithin(ctx context.Context, p types.Point, radiusKm float64) ([]*Driver, error) {
	cells, _ := geo.CoveringCells(p, radiusKm)
	if cells == nil {
		return s.ListAvailable(ctx)
	}
	prefixes := make(bson.A, len(cells))
	for i, c := range cells {
		prefixes[i] = bson.M{"geohash": bson.M{"$regex": "^" + c}}
	}
	return s.find(ctx, "driver.find_within", bson.M{
		"is_available": true,
		"$or":          prefixes,
	})
}

func (s *MongoStore) MarkUnavailable(ctx context.Context, id types.ID) (*Driver, error) {
	d, err := s.update(ctx, "driver.mark_unavailable",
		bson.M{"_id": string(id), "is_available": true},
		bson.M{"$set": bson.M{"is_available": false}},
	)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrUnavailable
	}
	return d, err
}

func (s *MongoStore) MarkAvailable(ctx context.Context, id types.ID) (*Driver, error) {
	return s.update(ctx, "driver.mark_available",
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{"is_available": true}},
	)
}

func (s *MongoStore) UpdateLocation(ctx context.Context, id types.ID, p types.Point) (*Driver, error) {
	return s.update(ctx, "driver.update_location",
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{"current_location": p, "geohash": cellOf(p)}},
	)
}

func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.col.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, types.StorageErr("driver.count", err)
	}
	return int(n), nil
}

func (s *MongoStore) update(ctx context.Context, op string, filter, update bson.M) (*Driver, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc driverDoc
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.StorageErr(op, err)
	}
	return doc.toDriver(), nil
}

func (s *MongoStore) find(ctx context.Context, op string, filter bson.M) ([]*Driver, error) {
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, types.StorageErr(op, err)
	}
	defer cur.Close(ctx)

	var out []*Driver
	for cur.Next(ctx) {
		var doc driverDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, types.StorageErr(op, err)
		}
		out = append(out, doc.toDriver())
	}
	if err := cur.Err(); err != nil {
		return nil, types.StorageErr(op, err)
	}
	return out, nil
}
