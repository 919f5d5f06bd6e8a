package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client owns one driver connection and hands out Collection adapters.
type Client struct {
	mc *mongo.Client
	db *mongo.Database
}

// Connect bootstraps a driver client from cfg and verifies the connection
// with a ping.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.AppName != "" {
		opts = opts.SetAppName(cfg.AppName)
	}
	if cfg.ConnectTimeout > 0 {
		opts = opts.SetConnectTimeout(cfg.ConnectTimeout.Std())
	}
	if cfg.MaxPoolSize > 0 {
		opts = opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	mc, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		_ = mc.Disconnect(ctx)
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Client{mc: mc, db: mc.Database(cfg.Database)}, nil
}

// Shutdown closes the underlying driver client.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.mc.Disconnect(ctx)
}

// Collection returns the adapter for the named collection.
func (c *Client) Collection(name string) Collection {
	return &mongoCollection{col: c.db.Collection(name)}
}

type mongoCollection struct {
	col *mongo.Collection
}

var _ Collection = (*mongoCollection)(nil)

func (m *mongoCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]bson.D, error) {
	cur, err := m.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var out []bson.D
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *mongoCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	return m.col.BulkWrite(ctx, models, opts...)
}

func (m *mongoCollection) DeleteMany(ctx context.Context, filter any, opts ...*options.DeleteOptions) (int64, error) {
	res, err := m.col.DeleteMany(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *mongoCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error) {
	if len(models) == 0 {
		return nil, nil
	}
	return m.col.Indexes().CreateMany(ctx, models)
}

func (m *mongoCollection) Count(ctx context.Context, filter any, opts ...*options.CountOptions) (int64, error) {
	return m.col.CountDocuments(ctx, filter, opts...)
}

func (m *mongoCollection) Aggregate(ctx context.Context, pipeline any, opts ...*options.AggregateOptions) ([]bson.D, error) {
	cur, err := m.col.Aggregate(ctx, pipeline, opts...)
	if err != nil {
		return nil, err
	}
	var out []bson.D
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
