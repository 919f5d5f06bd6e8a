// Package store supplies the document-database capability the mapper
// consumes: a narrow Collection contract, the mongo-driver adapter with its
// connect/shutdown bootstrap, and an in-memory implementation for tests and
// embedded use.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the minimal contract the mapper needs from a document
// collection. Driver errors pass through unchanged; retry policy belongs to
// the implementation or the caller, never to the mapper.
type Collection interface {
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]bson.D, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...*options.DeleteOptions) (int64, error)
	CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error)
	Count(ctx context.Context, filter any, opts ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline any, opts ...*options.AggregateOptions) ([]bson.D, error)
}
