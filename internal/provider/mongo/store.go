package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Cursor is the subset of *mongo.Cursor used while streaming.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// FindQuery describes one collection scan.
type FindQuery struct {
	Collection string
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	BatchSize  int32
}

// Store is the backend surface the provider needs.
type Store interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	Find(ctx context.Context, q FindQuery) (Cursor, error)
	Close(ctx context.Context) error
}

type clientStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Dial connects to uri and verifies the connection with a ping.
func Dial(ctx context.Context, uri, database string, timeout time.Duration) (Store, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &clientStore{client: client, db: client.Database(database)}, nil
}

func (s *clientStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	return len(names) > 0, nil
}

func (s *clientStore) Find(ctx context.Context, q FindQuery) (Cursor, error) {
	opts := options.Find().SetBatchSize(q.BatchSize)
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	filter := q.Filter
	if filter == nil {
		filter = bson.D{}
	}
	cur, err := s.db.Collection(q.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}
	return cur, nil
}

func (s *clientStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
