package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/saeedalam/mongo-mcp/internal/storage"
)

// Connector hands out the shared database client, establishing it on
// first use.
type Connector interface {
	Client(ctx context.Context) (storage.Client, error)
}

// Call is one tool invocation with normalized arguments and its resolved
// database context.
type Call struct {
	ID       string
	Tool     string
	Args     Args
	Database string

	client storage.Client
}

// Client returns the shared database client.
func (c *Call) Client() storage.Client {
	return c.client
}

// DB returns the database the call targets.
func (c *Call) DB() storage.Database {
	return c.client.Database(c.Database)
}

// CollectionName returns the "collection" argument.
func (c *Call) CollectionName() string {
	return c.Args.String("collection")
}

// Collection returns the collection the call targets.
func (c *Call) Collection() storage.Collection {
	return c.DB().Collection(c.CollectionName())
}

// Options configures a Dispatcher.
type Options struct {
	DefaultDatabase    string
	ResourceCollection string
	Version            string
	Logger             *slog.Logger
}

// Dispatcher routes requests to the registry and the tool handlers. Every
// outcome, including handler panics, comes back as an Envelope.
type Dispatcher struct {
	registry  *Registry
	conn      Connector
	database  string
	resources []Resource
	info      ServerInfo
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over registry using conn for database
// access.
func NewDispatcher(registry *Registry, conn Connector, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	d := &Dispatcher{
		registry: registry,
		conn:     conn,
		database: opts.DefaultDatabase,
		info:     ServerInfo{Name: "mongo-simple-server", Version: version},
		logger:   logger,
	}
	if opts.ResourceCollection != "" {
		d.resources = []Resource{{
			URI:         fmt.Sprintf("mongodb://%s/%s", opts.DefaultDatabase, opts.ResourceCollection),
			MimeType:    "application/json",
			Name:        opts.ResourceCollection + " Collection",
			Description: fmt.Sprintf("%s collection in %s database", opts.ResourceCollection, opts.DefaultDatabase),
		}}
	}
	return d
}

// Handle answers one request.
func (d *Dispatcher) Handle(ctx context.Context, method string, params json.RawMessage) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("request panicked", "method", method, "panic", r)
			env = internalError(fmt.Errorf("panic: %v", r))
		}
	}()

	d.logger.Debug("received request", "method", method)

	switch method {
	case "initialize":
		return success(InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      d.info,
			Capabilities: Capabilities{
				Tools:     &ToolsCapability{},
				Resources: &ResourcesCapability{},
			},
		})
	case "ping":
		return success(struct{}{})
	case "tools/list":
		return success(map[string]interface{}{"tools": d.registry.Infos()})
	case "tools/call":
		return d.invoke(ctx, params)
	case "resources/list":
		resources := d.resources
		if resources == nil {
			resources = []Resource{}
		}
		return success(map[string]interface{}{"resources": resources})
	default:
		return failure(CodeMethodNotFound, "Method not found: "+method, nil)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, params json.RawMessage) Envelope {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return internalError(fmt.Errorf("%w: %v", ErrInvalidArguments, err))
		}
	}

	tool, ok := d.registry.Lookup(p.Name)
	if !ok {
		d.logger.Warn("unknown tool", "tool", p.Name)
		return failure(CodeMethodNotFound, "Tool not found: "+p.Name, map[string]string{"tool": p.Name})
	}

	args, err := normalize(tool.Params, p.Arguments)
	if err != nil {
		d.logger.Warn("rejected tool arguments", "tool", tool.Name, "error", err)
		return internalError(err)
	}

	client, err := d.conn.Client(ctx)
	if err != nil {
		return internalError(err)
	}

	database := d.database
	if tool.HasParam("database") {
		if name := args.String("database"); name != "" {
			database = name
		}
	}

	call := &Call{
		ID:       uuid.NewString(),
		Tool:     tool.Name,
		Args:     args,
		Database: database,
		client:   client,
	}
	logger := d.logger.With("call_id", call.ID, "tool", tool.Name, "database", database)
	logger.Debug("executing tool", "arguments", string(p.Arguments))

	start := time.Now()
	result, err := tool.Handler(ctx, call)
	if err != nil {
		logger.Error("tool call failed", "error", err, "duration", time.Since(start))
		return internalError(err)
	}
	logger.Info("tool call completed", "duration", time.Since(start))
	return success(result)
}
