package pricing

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridequick/internal/types"
)

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection("cab_types")}
}

func (s *MongoStore) Create(ctx context.Context, c CabType) error {
	if _, err := s.coll.InsertOne(ctx, c); err != nil {
		return types.StorageErr("cab_type.create", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id types.ID) (CabType, error) {
	var c CabType
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return CabType{}, ErrCabTypeNotFound
	}
	if err != nil {
		return CabType{}, types.StorageErr("cab_type.get", err)
	}
	return c, nil
}

func (s *MongoStore) List(ctx context.Context) ([]CabType, error) {
	opts := options.Find().SetSort(bson.D{{Key: "base_price", Value: 1}, {Key: "name", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, types.StorageErr("cab_type.list", err)
	}
	var out []CabType
	if err := cur.All(ctx, &out); err != nil {
		return nil, types.StorageErr("cab_type.decode", err)
	}
	return out, nil
}
