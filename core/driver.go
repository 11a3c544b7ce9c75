// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the client boundary every database driver implements.
package core

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// SortOrder is the direction of a sort key: 1 ascending, -1 descending.
type SortOrder int

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

// FindOptions carries the cursor parameters of a Find call.
//
// Zero values mean "not set": no sort, no skip, no limit, all fields.
type FindOptions struct {
	Sort       bson.D // ordered field -> 1 / -1
	Skip       int64
	Limit      int64
	Projection bson.D // field -> 1; "_id" is always returned unless set to 0
}

// Cursor iterates over the raw documents produced by Find.
//
// Close must be called to release server-side resources; it is safe to call
// Close more than once.
type Cursor interface {
	Next(ctx context.Context) bool
	Raw() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

// Driver defines the contract for document database backends.
//
// Each driver (MongoDriver, PostgresDriver, MemoryDriver) implements this
// interface. Schemas with an empty Database use the driver's default
// database. Errors are returned unmodified to the caller.
type Driver interface {
	// Connect establishes a new connection or validates connectivity.
	Connect(ctx context.Context) error
	// Ping checks if the underlying database is reachable.
	Ping(ctx context.Context) error
	// Close terminates the connection and releases resources.
	Close(ctx context.Context) error

	// Find executes a native filter and returns a cursor over the matches.
	Find(ctx context.Context, schema *SchemaCore, filter bson.D, options *FindOptions) (Cursor, error)
	// InsertOne stores a new document. When the document has no "_id" the
	// driver assigns an ObjectID. It returns the stored identifier.
	InsertOne(ctx context.Context, schema *SchemaCore, document bson.Raw) (any, error)
	// ReplaceOne replaces the document stored under id and returns the
	// number of matched documents (0 or 1).
	ReplaceOne(ctx context.Context, schema *SchemaCore, id any, document bson.Raw) (int64, error)
	// Upsert atomically inserts or replaces the document stored under id.
	Upsert(ctx context.Context, schema *SchemaCore, id any, document bson.Raw) error
	// Delete removes every document matching the filter and returns how many were removed.
	Delete(ctx context.Context, schema *SchemaCore, filter bson.D) (int64, error)
	// Count returns the number of documents matching the filter.
	Count(ctx context.Context, schema *SchemaCore, filter bson.D) (int64, error)
}
