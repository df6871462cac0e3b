package history

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultDatabase   = "geoclear"
	defaultCollection = "processing_history"
)

// MongoStore persists run records in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and verifies the connection with a ping.
// An empty database name uses "geoclear".
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if database == "" {
		database = defaultDatabase
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(defaultCollection),
	}, nil
}

// Append saves one record.
func (s *MongoStore) Append(ctx context.Context, rec Record) error {
	_, err := s.coll.InsertOne(ctx, rec)
	return err
}

// List returns the most recent records, newest first, up to limit.
func (s *MongoStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultMemoryCapacity
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
