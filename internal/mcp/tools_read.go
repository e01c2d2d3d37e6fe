package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/saeedalam/mongo-mcp/internal/storage"
)

// =============================================================================
// READ TOOLS
// Aggregation, sampling and filtered reads
// =============================================================================

const noDocumentFound = "No document found matching the criteria"

func collectionParam(description string) Param {
	return Param{Name: "collection", Type: TypeString, Required: true, Description: description}
}

func databaseParam() Param {
	return Param{Name: "database", Type: TypeString, Description: "Database name (defaults to the server's default database)"}
}

func filterParam(required bool) Param {
	return Param{
		Name:        "filter",
		Type:        TypeObject,
		Required:    required,
		Default:     defaultFor(required),
		Description: "Query filter (MongoDB Extended JSON)",
	}
}

func defaultFor(required bool) interface{} {
	if required {
		return nil
	}
	return map[string]interface{}{}
}

func pipelineParam(description string) Param {
	return Param{Name: "pipeline", Type: TypeArray, Items: TypeObject, Required: true, Description: description}
}

func aggregateTool() *Tool {
	return &Tool{
		Name:        "aggregate",
		Description: "Run a MongoDB aggregation pipeline",
		Params: []Param{
			collectionParam("Name of the collection to query"),
			pipelineParam("MongoDB aggregation pipeline stages"),
			databaseParam(),
		},
		Handler: handleAggregate,
	}
}

func handleAggregate(ctx context.Context, call *Call) (*ToolResult, error) {
	docs, err := call.Collection().Aggregate(ctx, call.Args.Raw("pipeline"))
	if err != nil {
		return nil, err
	}
	return jsonResult(docs)
}

func sampleTool() *Tool {
	return &Tool{
		Name:        "sample",
		Description: "Get random sample documents from a collection",
		Params: []Param{
			collectionParam("Name of the collection to sample from"),
			{
				Name:        "count",
				Type:        TypeInteger,
				Default:     5,
				Min:         bound(1),
				Max:         bound(10),
				Description: "Number of documents to sample (default: 5, max: 10)",
			},
			databaseParam(),
		},
		Handler: handleSample,
	}
}

func handleSample(ctx context.Context, call *Call) (*ToolResult, error) {
	pipeline := json.RawMessage(fmt.Sprintf(`[{"$sample":{"size":%d}}]`, call.Args.Int("count")))
	docs, err := call.Collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return jsonResult(docs)
}

func explainTool() *Tool {
	return &Tool{
		Name:        "explain",
		Description: "Get the execution plan for an aggregation pipeline",
		Params: []Param{
			collectionParam("Name of the collection to analyze"),
			pipelineParam("MongoDB aggregation pipeline stages to analyze"),
			databaseParam(),
		},
		Handler: handleExplain,
	}
}

func handleExplain(ctx context.Context, call *Call) (*ToolResult, error) {
	plan, err := call.Collection().Explain(ctx, call.Args.Raw("pipeline"))
	if err != nil {
		return nil, err
	}
	return jsonResult(plan)
}

func findTool() *Tool {
	return &Tool{
		Name:        "find",
		Description: "Find documents in a collection with an optional filter, projection, sort and limit",
		Params: []Param{
			collectionParam("Name of the collection to query"),
			filterParam(false),
			{Name: "projection", Type: TypeObject, Default: map[string]interface{}{}, Description: "Fields to include or exclude"},
			{
				Name:        "limit",
				Type:        TypeInteger,
				Default:     10,
				Min:         bound(1),
				Max:         bound(100),
				Description: "Maximum number of documents to return (default: 10, max: 100)",
			},
			{Name: "sort", Type: TypeObject, Default: map[string]interface{}{}, Description: "Sort specification, e.g. {\"createdAt\": -1}"},
			databaseParam(),
		},
		Handler: handleFind,
	}
}

func handleFind(ctx context.Context, call *Call) (*ToolResult, error) {
	docs, err := call.Collection().Find(ctx, call.Args.Raw("filter"), storage.FindOptions{
		Projection: call.Args.Raw("projection"),
		Sort:       call.Args.Raw("sort"),
		Limit:      call.Args.Int("limit"),
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(docs)
}

func findOneTool() *Tool {
	return &Tool{
		Name:        "findOne",
		Description: "Find a single document matching a filter",
		Params: []Param{
			collectionParam("Name of the collection to query"),
			filterParam(true),
			{Name: "projection", Type: TypeObject, Default: map[string]interface{}{}, Description: "Fields to include or exclude"},
			databaseParam(),
		},
		Handler: handleFindOne,
	}
}

func handleFindOne(ctx context.Context, call *Call) (*ToolResult, error) {
	doc, err := call.Collection().FindOne(ctx, call.Args.Raw("filter"), call.Args.Raw("projection"))
	if errors.Is(err, storage.ErrNotFound) {
		return textResult(noDocumentFound), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(doc)
}

func countTool() *Tool {
	return &Tool{
		Name:        "count",
		Description: "Count documents matching a filter",
		Params: []Param{
			collectionParam("Name of the collection to count"),
			filterParam(false),
			databaseParam(),
		},
		Handler: handleCount,
	}
}

func handleCount(ctx context.Context, call *Call) (*ToolResult, error) {
	n, err := call.Collection().CountDocuments(ctx, call.Args.Raw("filter"))
	if err != nil {
		return nil, err
	}
	return textResult(strconv.FormatInt(n, 10)), nil
}

func distinctTool() *Tool {
	return &Tool{
		Name:        "distinct",
		Description: "List the distinct values of a field",
		Params: []Param{
			collectionParam("Name of the collection to query"),
			{Name: "field", Type: TypeString, Required: true, Description: "Field to collect distinct values for"},
			filterParam(false),
			databaseParam(),
		},
		Handler: handleDistinct,
	}
}

func handleDistinct(ctx context.Context, call *Call) (*ToolResult, error) {
	values, err := call.Collection().Distinct(ctx, call.Args.String("field"), call.Args.Raw("filter"))
	if err != nil {
		return nil, err
	}
	return jsonResult(values)
}
