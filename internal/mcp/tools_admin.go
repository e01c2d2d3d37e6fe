package mcp

import (
	"context"
	"fmt"
)

// =============================================================================
// ADMIN TOOLS
// Introspection and the confirmation-gated drop
// =============================================================================

func listCollectionsTool() *Tool {
	return &Tool{
		Name:        "listCollections",
		Description: "List the collections in a database",
		Params: []Param{
			{Name: "nameOnly", Type: TypeBoolean, Default: false, Description: "Return only collection names and types"},
			databaseParam(),
		},
		Handler: handleListCollections,
	}
}

func handleListCollections(ctx context.Context, call *Call) (*ToolResult, error) {
	colls, err := call.DB().ListCollections(ctx, call.Args.Bool("nameOnly"))
	if err != nil {
		return nil, err
	}
	return jsonResult(colls)
}

func listDatabasesTool() *Tool {
	return &Tool{
		Name:        "listDatabases",
		Description: "List all databases on the server",
		Params: []Param{
			{Name: "nameOnly", Type: TypeBoolean, Default: true, Description: "Return only database names"},
		},
		Handler: handleListDatabases,
	}
}

func handleListDatabases(ctx context.Context, call *Call) (*ToolResult, error) {
	dbs, err := call.Client().ListDatabases(ctx, call.Args.Bool("nameOnly"))
	if err != nil {
		return nil, err
	}
	return jsonResult(dbs)
}

func dropCollectionTool() *Tool {
	return &Tool{
		Name:        "dropCollection",
		Description: "Drop a collection and all its documents. Requires confirm set to true",
		Params: []Param{
			collectionParam("Name of the collection to drop"),
			{Name: "confirm", Type: TypeBoolean, Gate: true, Default: false, Description: "Must be true to drop the collection"},
			databaseParam(),
		},
		Handler: handleDropCollection,
	}
}

func handleDropCollection(ctx context.Context, call *Call) (*ToolResult, error) {
	name := call.CollectionName()
	if !call.Args.Bool("confirm") {
		return textResult(fmt.Sprintf(
			"Refusing to drop collection %q in database %q: set confirm to true to proceed",
			name, call.Database,
		)), nil
	}

	if err := call.Collection().Drop(ctx); err != nil {
		return nil, fmt.Errorf("drop collection %q: %w", name, err)
	}
	return textResult(fmt.Sprintf("Collection %q dropped from database %q", name, call.Database)), nil
}
