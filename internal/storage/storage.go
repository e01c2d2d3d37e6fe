// Package storage is the database side of the server: the client, database
// and collection verbs the tool handlers call, a lazily established shared
// connection, and the MongoDB driver adapter behind them.
//
// Filters, documents, pipelines and results cross this boundary as raw
// Extended JSON so key order and BSON types survive the trip.
package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by FindOne when no document matches.
var ErrNotFound = errors.New("no document found")

// ErrClosed is returned once the shared connection has been closed.
var ErrClosed = errors.New("connection closed")

// Client is a connection to a database server.
type Client interface {
	Database(name string) Database
	// ListDatabases enumerates databases server-wide. With nameOnly the
	// result is a JSON array of names.
	ListDatabases(ctx context.Context, nameOnly bool) (json.RawMessage, error)
	Close(ctx context.Context) error
}

// Database is a named database on a Client.
type Database interface {
	Name() string
	Collection(name string) Collection
	ListCollections(ctx context.Context, nameOnly bool) ([]json.RawMessage, error)
}

// Collection exposes one verb per supported operation.
type Collection interface {
	Aggregate(ctx context.Context, pipeline json.RawMessage) ([]json.RawMessage, error)
	Explain(ctx context.Context, pipeline json.RawMessage) (json.RawMessage, error)
	Find(ctx context.Context, filter json.RawMessage, opts FindOptions) ([]json.RawMessage, error)
	FindOne(ctx context.Context, filter, projection json.RawMessage) (json.RawMessage, error)
	CountDocuments(ctx context.Context, filter json.RawMessage) (int64, error)
	Distinct(ctx context.Context, field string, filter json.RawMessage) (json.RawMessage, error)
	InsertOne(ctx context.Context, document json.RawMessage) (*InsertOneResult, error)
	InsertMany(ctx context.Context, documents json.RawMessage) (*InsertManyResult, error)
	UpdateOne(ctx context.Context, filter, update json.RawMessage, upsert bool) (*UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update json.RawMessage) (*UpdateResult, error)
	DeleteOne(ctx context.Context, filter json.RawMessage) (*DeleteResult, error)
	DeleteMany(ctx context.Context, filter json.RawMessage) (*DeleteResult, error)
	Drop(ctx context.Context) error
}

// FindOptions shapes a Find. Empty Projection or Sort documents are not sent.
type FindOptions struct {
	Projection json.RawMessage
	Sort       json.RawMessage
	Limit      int64
}

// InsertOneResult is the acknowledgement of a single insert.
type InsertOneResult struct {
	Acknowledged bool            `json:"acknowledged"`
	InsertedID   json.RawMessage `json:"insertedId"`
}

// InsertManyResult is the acknowledgement of a bulk insert.
type InsertManyResult struct {
	Acknowledged  bool            `json:"acknowledged"`
	InsertedCount int             `json:"insertedCount"`
	InsertedIDs   json.RawMessage `json:"insertedIds"`
}

// UpdateResult is the acknowledgement of an update.
type UpdateResult struct {
	Acknowledged  bool            `json:"acknowledged"`
	MatchedCount  int64           `json:"matchedCount"`
	ModifiedCount int64           `json:"modifiedCount"`
	UpsertedCount int64           `json:"upsertedCount"`
	UpsertedID    json.RawMessage `json:"upsertedId,omitempty"`
}

// DeleteResult is the acknowledgement of a delete.
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

// Dialer establishes a new Client.
type Dialer func(ctx context.Context) (Client, error)
