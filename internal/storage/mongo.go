package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDialer dials a MongoDB deployment at uri. A client counts as
// established once the primary answers a ping. timeout bounds connect and
// server selection inside the driver; zero keeps the driver defaults.
func MongoDialer(uri string, timeout time.Duration) Dialer {
	return func(ctx context.Context) (Client, error) {
		opts := options.Client().ApplyURI(uri)
		if timeout > 0 {
			opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
		}

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("ping: %w", err)
		}
		return &mongoClient{client: client}, nil
	}
}

type mongoClient struct {
	client *mongo.Client
}

func (c *mongoClient) Database(name string) Database {
	return &mongoDatabase{db: c.client.Database(name)}
}

type databaseSpec struct {
	Name       string `json:"name"`
	SizeOnDisk int64  `json:"sizeOnDisk"`
	Empty      bool   `json:"empty"`
}

func (c *mongoClient) ListDatabases(ctx context.Context, nameOnly bool) (json.RawMessage, error) {
	if nameOnly {
		names, err := c.client.ListDatabaseNames(ctx, bson.D{})
		if err != nil {
			return nil, err
		}
		return json.Marshal(names)
	}

	res, err := c.client.ListDatabases(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	specs := make([]databaseSpec, 0, len(res.Databases))
	for _, d := range res.Databases {
		specs = append(specs, databaseSpec{Name: d.Name, SizeOnDisk: d.SizeOnDisk, Empty: d.Empty})
	}
	return json.Marshal(map[string]interface{}{
		"databases": specs,
		"totalSize": res.TotalSize,
	})
}

func (c *mongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) Name() string {
	return d.db.Name()
}

func (d *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name)}
}

func (d *mongoDatabase) ListCollections(ctx context.Context, nameOnly bool) ([]json.RawMessage, error) {
	cur, err := d.db.ListCollections(ctx, bson.D{}, options.ListCollections().SetNameOnly(nameOnly))
	if err != nil {
		return nil, err
	}
	return readAll(ctx, cur)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Aggregate(ctx context.Context, pipeline json.RawMessage) ([]json.RawMessage, error) {
	stages, err := decodeArray(pipeline)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cur, err := c.coll.Aggregate(ctx, stages)
	if err != nil {
		return nil, err
	}
	return readAll(ctx, cur)
}

func (c *mongoCollection) Explain(ctx context.Context, pipeline json.RawMessage) (json.RawMessage, error) {
	stages, err := decodeArray(pipeline)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cmd := bson.D{
		{Key: "explain", Value: bson.D{
			{Key: "aggregate", Value: c.coll.Name()},
			{Key: "pipeline", Value: stages},
			{Key: "cursor", Value: bson.D{}},
		}},
		{Key: "verbosity", Value: "queryPlanner"},
	}
	raw, err := c.coll.Database().RunCommand(ctx, cmd).Raw()
	if err != nil {
		return nil, err
	}
	return encodeDocument(raw)
}

func (c *mongoCollection) Find(ctx context.Context, filter json.RawMessage, opts FindOptions) ([]json.RawMessage, error) {
	f, err := decodeDocument(filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	projection, err := decodeDocument(opts.Projection)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	sort, err := decodeDocument(opts.Sort)
	if err != nil {
		return nil, fmt.Errorf("sort: %w", err)
	}

	fo := options.Find()
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if len(projection) > 0 {
		fo.SetProjection(projection)
	}
	if len(sort) > 0 {
		fo.SetSort(sort)
	}

	cur, err := c.coll.Find(ctx, f, fo)
	if err != nil {
		return nil, err
	}
	return readAll(ctx, cur)
}

func (c *mongoCollection) FindOne(ctx context.Context, filter, projection json.RawMessage) (json.RawMessage, error) {
	f, err := decodeDocument(filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	p, err := decodeDocument(projection)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}

	fo := options.FindOne()
	if len(p) > 0 {
		fo.SetProjection(p)
	}
	raw, err := c.coll.FindOne(ctx, f, fo).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return encodeDocument(raw)
}

func (c *mongoCollection) CountDocuments(ctx context.Context, filter json.RawMessage) (int64, error) {
	f, err := decodeDocument(filter)
	if err != nil {
		return 0, fmt.Errorf("filter: %w", err)
	}
	return c.coll.CountDocuments(ctx, f)
}

func (c *mongoCollection) Distinct(ctx context.Context, field string, filter json.RawMessage) (json.RawMessage, error) {
	f, err := decodeDocument(filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	values, err := c.coll.Distinct(ctx, field, f)
	if err != nil {
		return nil, err
	}
	return encodeValue(bson.A(values))
}

func (c *mongoCollection) InsertOne(ctx context.Context, document json.RawMessage) (*InsertOneResult, error) {
	doc, err := decodeDocument(document)
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	id, err := encodeValue(res.InsertedID)
	if err != nil {
		return nil, err
	}
	return &InsertOneResult{Acknowledged: true, InsertedID: id}, nil
}

func (c *mongoCollection) InsertMany(ctx context.Context, documents json.RawMessage) (*InsertManyResult, error) {
	docs, err := decodeArray(documents)
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	for i, d := range docs {
		if _, ok := d.(bson.D); !ok {
			return nil, fmt.Errorf("documents[%d]: expected a document, got %s", i, kindOf(d))
		}
	}
	res, err := c.coll.InsertMany(ctx, []interface{}(docs))
	if err != nil {
		return nil, err
	}
	ids, err := encodeValue(bson.A(res.InsertedIDs))
	if err != nil {
		return nil, err
	}
	return &InsertManyResult{Acknowledged: true, InsertedCount: len(res.InsertedIDs), InsertedIDs: ids}, nil
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter, update json.RawMessage, upsert bool) (*UpdateResult, error) {
	f, u, err := decodeFilterUpdate(filter, update)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.UpdateOne(ctx, f, u, options.Update().SetUpsert(upsert))
	if err != nil {
		return nil, err
	}
	return updateResult(res)
}

func (c *mongoCollection) UpdateMany(ctx context.Context, filter, update json.RawMessage) (*UpdateResult, error) {
	f, u, err := decodeFilterUpdate(filter, update)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.UpdateMany(ctx, f, u)
	if err != nil {
		return nil, err
	}
	return updateResult(res)
}

func (c *mongoCollection) DeleteOne(ctx context.Context, filter json.RawMessage) (*DeleteResult, error) {
	f, err := decodeDocument(filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	res, err := c.coll.DeleteOne(ctx, f)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter json.RawMessage) (*DeleteResult, error) {
	f, err := decodeDocument(filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	res, err := c.coll.DeleteMany(ctx, f)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

func (c *mongoCollection) Drop(ctx context.Context) error {
	return c.coll.Drop(ctx)
}

func decodeFilterUpdate(filter, update json.RawMessage) (bson.D, interface{}, error) {
	f, err := decodeDocument(filter)
	if err != nil {
		return nil, nil, fmt.Errorf("filter: %w", err)
	}
	u, err := decodeUpdate(update)
	if err != nil {
		return nil, nil, fmt.Errorf("update: %w", err)
	}
	return f, u, nil
}

func updateResult(res *mongo.UpdateResult) (*UpdateResult, error) {
	out := &UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
	}
	if res.UpsertedID != nil {
		id, err := encodeValue(res.UpsertedID)
		if err != nil {
			return nil, err
		}
		out.UpsertedID = id
	}
	return out, nil
}

func readAll(ctx context.Context, cur *mongo.Cursor) ([]json.RawMessage, error) {
	defer cur.Close(ctx)

	docs := []json.RawMessage{}
	for cur.Next(ctx) {
		doc, err := encodeDocument(cur.Current)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
