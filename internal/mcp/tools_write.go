package mcp

import (
	"context"
)

// =============================================================================
// WRITE TOOLS
// Inserts, updates and deletes; results are the driver acknowledgements
// =============================================================================

func insertOneTool() *Tool {
	return &Tool{
		Name:        "insertOne",
		Description: "Insert a single document into a collection",
		Params: []Param{
			collectionParam("Name of the collection to insert into"),
			{Name: "document", Type: TypeObject, Required: true, Description: "Document to insert"},
			databaseParam(),
		},
		Handler: handleInsertOne,
	}
}

func handleInsertOne(ctx context.Context, call *Call) (*ToolResult, error) {
	res, err := call.Collection().InsertOne(ctx, call.Args.Raw("document"))
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}

func insertManyTool() *Tool {
	return &Tool{
		Name:        "insertMany",
		Description: "Insert multiple documents into a collection",
		Params: []Param{
			collectionParam("Name of the collection to insert into"),
			{Name: "documents", Type: TypeArray, Items: TypeObject, Required: true, Description: "Documents to insert"},
			databaseParam(),
		},
		Handler: handleInsertMany,
	}
}

func handleInsertMany(ctx context.Context, call *Call) (*ToolResult, error) {
	res, err := call.Collection().InsertMany(ctx, call.Args.Raw("documents"))
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}

func updateParam() Param {
	return Param{Name: "update", Type: TypeObject, Required: true, Description: "Update operations, e.g. {\"$set\": {...}}"}
}

func updateOneTool() *Tool {
	return &Tool{
		Name:        "updateOne",
		Description: "Update a single document matching a filter",
		Params: []Param{
			collectionParam("Name of the collection to update"),
			filterParam(true),
			updateParam(),
			{Name: "upsert", Type: TypeBoolean, Default: false, Description: "Insert a document when none matches"},
			databaseParam(),
		},
		Handler: handleUpdateOne,
	}
}

func handleUpdateOne(ctx context.Context, call *Call) (*ToolResult, error) {
	res, err := call.Collection().UpdateOne(ctx, call.Args.Raw("filter"), call.Args.Raw("update"), call.Args.Bool("upsert"))
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}

func updateManyTool() *Tool {
	return &Tool{
		Name:        "updateMany",
		Description: "Update all documents matching a filter",
		Params: []Param{
			collectionParam("Name of the collection to update"),
			filterParam(true),
			updateParam(),
			databaseParam(),
		},
		Handler: handleUpdateMany,
	}
}

func handleUpdateMany(ctx context.Context, call *Call) (*ToolResult, error) {
	res, err := call.Collection().UpdateMany(ctx, call.Args.Raw("filter"), call.Args.Raw("update"))
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}

func deleteOneTool() *Tool {
	return &Tool{
		Name:        "deleteOne",
		Description: "Delete a single document matching a filter",
		Params: []Param{
			collectionParam("Name of the collection to delete from"),
			filterParam(true),
			databaseParam(),
		},
		Handler: handleDeleteOne,
	}
}

func handleDeleteOne(ctx context.Context, call *Call) (*ToolResult, error) {
	res, err := call.Collection().DeleteOne(ctx, call.Args.Raw("filter"))
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}

func deleteManyTool() *Tool {
	return &Tool{
		Name:        "deleteMany",
		Description: "Delete all documents matching a filter",
		Params: []Param{
			collectionParam("Name of the collection to delete from"),
			filterParam(true),
			databaseParam(),
		},
		Handler: handleDeleteMany,
	}
}

func handleDeleteMany(ctx context.Context, call *Call) (*ToolResult, error) {
	res, err := call.Collection().DeleteMany(ctx, call.Args.Raw("filter"))
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}
