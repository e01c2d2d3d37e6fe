package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/saeedalam/mongo-mcp/internal/storage"
	"github.com/stretchr/testify/require"
)

// memClient is an in-memory storage.Client. Filters match on top-level
// field equality only.
type memClient struct {
	mu        sync.Mutex
	dbs       map[string]map[string][]map[string]interface{}
	ops       []memOp
	mutations int
	nextID    int
	failWith  error
}

type memOp struct {
	Op         string
	Database   string
	Collection string
	Pipeline   string
	Find       storage.FindOptions
}

func newMemClient() *memClient {
	return &memClient{dbs: make(map[string]map[string][]map[string]interface{})}
}

func (c *memClient) record(op memOp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, op)
	return c.failWith
}

func (c *memClient) recorded() []memOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]memOp(nil), c.ops...)
}

func (c *memClient) lastOp(t *testing.T) memOp {
	t.Helper()
	ops := c.recorded()
	require.NotEmpty(t, ops)
	return ops[len(ops)-1]
}

func (c *memClient) Database(name string) storage.Database {
	return &memDatabase{client: c, name: name}
}

func (c *memClient) ListDatabases(ctx context.Context, nameOnly bool) (json.RawMessage, error) {
	if err := c.record(memOp{Op: "listDatabases"}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.dbs))
	for name := range c.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	if nameOnly {
		return json.Marshal(names)
	}
	specs := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		specs = append(specs, map[string]interface{}{"name": name, "sizeOnDisk": 0, "empty": false})
	}
	return json.Marshal(map[string]interface{}{"databases": specs, "totalSize": 0})
}

func (c *memClient) Close(ctx context.Context) error { return nil }

type memDatabase struct {
	client *memClient
	name   string
}

func (d *memDatabase) Name() string { return d.name }

func (d *memDatabase) Collection(name string) storage.Collection {
	return &memCollection{client: d.client, db: d.name, name: name}
}

func (d *memDatabase) ListCollections(ctx context.Context, nameOnly bool) ([]json.RawMessage, error) {
	if err := d.client.record(memOp{Op: "listCollections", Database: d.name}); err != nil {
		return nil, err
	}
	d.client.mu.Lock()
	defer d.client.mu.Unlock()
	names := make([]string, 0)
	for name := range d.client.dbs[d.name] {
		names = append(names, name)
	}
	sort.Strings(names)
	out := []json.RawMessage{}
	for _, name := range names {
		raw, _ := json.Marshal(map[string]string{"name": name, "type": "collection"})
		out = append(out, raw)
	}
	return out, nil
}

type memCollection struct {
	client *memClient
	db     string
	name   string
}

func (c *memCollection) op(name string) memOp {
	return memOp{Op: name, Database: c.db, Collection: c.name}
}

// docs returns the collection's documents; the caller holds client.mu.
func (c *memCollection) docs() []map[string]interface{} {
	return c.client.dbs[c.db][c.name]
}

func (c *memCollection) matching(filter json.RawMessage) ([]map[string]interface{}, error) {
	f := map[string]interface{}{}
	if len(filter) > 0 {
		if err := json.Unmarshal(filter, &f); err != nil {
			return nil, err
		}
	}
	var out []map[string]interface{}
	for _, doc := range c.docs() {
		if matches(doc, f) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func matches(doc, filter map[string]interface{}) bool {
	for k, v := range filter {
		if !reflect.DeepEqual(doc[k], v) {
			return false
		}
	}
	return true
}

func encodeDocs(docs []map[string]interface{}) []json.RawMessage {
	out := []json.RawMessage{}
	for _, d := range docs {
		raw, _ := json.Marshal(d)
		out = append(out, raw)
	}
	return out
}

func (c *memCollection) Aggregate(ctx context.Context, pipeline json.RawMessage) ([]json.RawMessage, error) {
	op := c.op("aggregate")
	op.Pipeline = string(pipeline)
	if err := c.client.record(op); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	return encodeDocs(c.docs()), nil
}

func (c *memCollection) Explain(ctx context.Context, pipeline json.RawMessage) (json.RawMessage, error) {
	op := c.op("explain")
	op.Pipeline = string(pipeline)
	if err := c.client.record(op); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{
		"queryPlanner": map[string]string{"namespace": c.db + "." + c.name},
	})
}

func (c *memCollection) Find(ctx context.Context, filter json.RawMessage, opts storage.FindOptions) ([]json.RawMessage, error) {
	op := c.op("find")
	op.Find = opts
	if err := c.client.record(op); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	docs, err := c.matching(filter)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && int64(len(docs)) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return encodeDocs(docs), nil
}

func (c *memCollection) FindOne(ctx context.Context, filter, projection json.RawMessage) (json.RawMessage, error) {
	if err := c.client.record(c.op("findOne")); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	docs, err := c.matching(filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, storage.ErrNotFound
	}
	return json.Marshal(docs[0])
}

func (c *memCollection) CountDocuments(ctx context.Context, filter json.RawMessage) (int64, error) {
	if err := c.client.record(c.op("count")); err != nil {
		return 0, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	docs, err := c.matching(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (c *memCollection) Distinct(ctx context.Context, field string, filter json.RawMessage) (json.RawMessage, error) {
	if err := c.client.record(c.op("distinct")); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	docs, err := c.matching(filter)
	if err != nil {
		return nil, err
	}
	values := []interface{}{}
	for _, d := range docs {
		v, ok := d[field]
		if !ok {
			continue
		}
		seen := false
		for _, existing := range values {
			if reflect.DeepEqual(existing, v) {
				seen = true
				break
			}
		}
		if !seen {
			values = append(values, v)
		}
	}
	return json.Marshal(values)
}

// insert stores doc; the caller holds client.mu.
func (c *memCollection) insert(raw json.RawMessage) (json.RawMessage, error) {
	doc := map[string]interface{}{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if _, ok := doc["_id"]; !ok {
		c.client.nextID++
		doc["_id"] = fmt.Sprintf("id-%d", c.client.nextID)
	}
	if c.client.dbs[c.db] == nil {
		c.client.dbs[c.db] = make(map[string][]map[string]interface{})
	}
	c.client.dbs[c.db][c.name] = append(c.client.dbs[c.db][c.name], doc)
	c.client.mutations++
	return json.Marshal(doc["_id"])
}

func (c *memCollection) InsertOne(ctx context.Context, document json.RawMessage) (*storage.InsertOneResult, error) {
	if err := c.client.record(c.op("insertOne")); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	id, err := c.insert(document)
	if err != nil {
		return nil, err
	}
	return &storage.InsertOneResult{Acknowledged: true, InsertedID: id}, nil
}

func (c *memCollection) InsertMany(ctx context.Context, documents json.RawMessage) (*storage.InsertManyResult, error) {
	if err := c.client.record(c.op("insertMany")); err != nil {
		return nil, err
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(documents, &docs); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	ids := []json.RawMessage{}
	for _, d := range docs {
		id, err := c.insert(d)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	rawIDs, _ := json.Marshal(ids)
	return &storage.InsertManyResult{Acknowledged: true, InsertedCount: len(ids), InsertedIDs: rawIDs}, nil
}

// update applies a $set update; the caller holds client.mu.
func (c *memCollection) update(filter, update json.RawMessage, many bool) (*storage.UpdateResult, error) {
	var u struct {
		Set map[string]interface{} `json:"$set"`
	}
	if err := json.Unmarshal(update, &u); err != nil {
		return nil, err
	}
	docs, err := c.matching(filter)
	if err != nil {
		return nil, err
	}
	if !many && len(docs) > 1 {
		docs = docs[:1]
	}
	for _, d := range docs {
		for k, v := range u.Set {
			d[k] = v
		}
		c.client.mutations++
	}
	return &storage.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  int64(len(docs)),
		ModifiedCount: int64(len(docs)),
	}, nil
}

func (c *memCollection) UpdateOne(ctx context.Context, filter, update json.RawMessage, upsert bool) (*storage.UpdateResult, error) {
	if err := c.client.record(c.op("updateOne")); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	res, err := c.update(filter, update, false)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 && upsert {
		var u struct {
			Set map[string]interface{} `json:"$set"`
		}
		doc := map[string]interface{}{}
		_ = json.Unmarshal(update, &u)
		_ = json.Unmarshal(filter, &doc)
		for k, v := range u.Set {
			doc[k] = v
		}
		raw, _ := json.Marshal(doc)
		id, err := c.insert(raw)
		if err != nil {
			return nil, err
		}
		res.UpsertedCount = 1
		res.UpsertedID = id
	}
	return res, nil
}

func (c *memCollection) UpdateMany(ctx context.Context, filter, update json.RawMessage) (*storage.UpdateResult, error) {
	if err := c.client.record(c.op("updateMany")); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	return c.update(filter, update, true)
}

// remove deletes matching documents; the caller holds client.mu.
func (c *memCollection) remove(filter json.RawMessage, many bool) (*storage.DeleteResult, error) {
	f := map[string]interface{}{}
	if err := json.Unmarshal(filter, &f); err != nil {
		return nil, err
	}
	var kept []map[string]interface{}
	var deleted int64
	for _, d := range c.docs() {
		if matches(d, f) && (many || deleted == 0) {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	if c.client.dbs[c.db] != nil {
		c.client.dbs[c.db][c.name] = kept
	}
	c.client.mutations += int(deleted)
	return &storage.DeleteResult{Acknowledged: true, DeletedCount: deleted}, nil
}

func (c *memCollection) DeleteOne(ctx context.Context, filter json.RawMessage) (*storage.DeleteResult, error) {
	if err := c.client.record(c.op("deleteOne")); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	return c.remove(filter, false)
}

func (c *memCollection) DeleteMany(ctx context.Context, filter json.RawMessage) (*storage.DeleteResult, error) {
	if err := c.client.record(c.op("deleteMany")); err != nil {
		return nil, err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	return c.remove(filter, true)
}

func (c *memCollection) Drop(ctx context.Context) error {
	if err := c.client.record(c.op("drop")); err != nil {
		return err
	}
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	delete(c.client.dbs[c.db], c.name)
	c.client.mutations++
	return nil
}

// =============================================================================
// HARNESS
// =============================================================================

const testDatabase = "testdb"

type harness struct {
	client     *memClient
	conn       *storage.Conn
	dispatcher *Dispatcher
	dials      *atomic.Int32
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := newMemClient()
	return newHarnessWithDialer(t, client, func(ctx context.Context) (storage.Client, error) {
		return client, nil
	})
}

func newHarnessWithDialer(t *testing.T, client *memClient, dial storage.Dialer) *harness {
	t.Helper()
	h := &harness{client: client, dials: &atomic.Int32{}}
	h.conn = storage.NewConn(func(ctx context.Context) (storage.Client, error) {
		h.dials.Add(1)
		return dial(ctx)
	}, quietLogger())
	h.dispatcher = NewDispatcher(DefaultRegistry(), h.conn, Options{
		DefaultDatabase:    testDatabase,
		ResourceCollection: "PEMLeads",
		Version:            "test",
		Logger:             quietLogger(),
	})
	return h
}

func (h *harness) call(t *testing.T, name string, args interface{}) Envelope {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	require.NoError(t, err)
	return h.dispatcher.Handle(context.Background(), "tools/call", params)
}

func resultText(t *testing.T, env Envelope) string {
	t.Helper()
	require.Nil(t, env.Error, "unexpected error envelope: %+v", env.Error)
	res, ok := env.Result.(*ToolResult)
	require.True(t, ok, "result is %T", env.Result)
	require.Len(t, res.Content, 1)
	require.Equal(t, "text", res.Content[0].Type)
	return res.Content[0].Text
}

func errorDetails(t *testing.T, env Envelope) string {
	t.Helper()
	require.NotNil(t, env.Error)
	require.Nil(t, env.Result)
	require.Equal(t, CodeInternalError, env.Error.Code)
	data, ok := env.Error.Data.(map[string]string)
	require.True(t, ok, "data is %T", env.Error.Data)
	return data["details"]
}
