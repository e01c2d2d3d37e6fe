package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

// Param declares one tool parameter.
type Param struct {
	Name        string
	Description string
	Type        ParamType
	// Items is the element type of an array parameter, if constrained.
	Items    ParamType
	Required bool
	// Gate marks a parameter listed as required in the input schema whose
	// absence is answered by the tool itself instead of being rejected.
	Gate    bool
	Default interface{}
	Min     *float64
	Max     *float64
}

// Handler executes a tool against normalized arguments.
type Handler func(ctx context.Context, call *Call) (*ToolResult, error)

// Tool pairs a tool definition with the handler that executes it.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// ToolInfo describes a tool
type ToolInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// HasParam reports whether the tool declares name.
func (t *Tool) HasParam(name string) bool {
	for _, p := range t.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// InputSchema builds the JSON schema advertised for the tool's arguments.
func (t *Tool) InputSchema() *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(t.Params)),
	}
	for _, p := range t.Params {
		prop := &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
			Minimum:     p.Min,
			Maximum:     p.Max,
		}
		if p.Items != "" {
			prop.Items = &jsonschema.Schema{Type: string(p.Items)}
		}
		if p.Default != nil {
			// Defaults are literals declared in code.
			raw, _ := json.Marshal(p.Default)
			prop.Default = raw
		}
		schema.Properties[p.Name] = prop
		if p.Required || p.Gate {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

// Info returns the listing form of the tool.
func (t *Tool) Info() ToolInfo {
	return ToolInfo{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema(),
	}
}

// Registry is the immutable, ordered tool catalog.
type Registry struct {
	tools  []*Tool
	byName map[string]*Tool
	infos  []ToolInfo
}

// NewRegistry builds a registry from tools in catalog order.
func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", t.Name)
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		r.byName[t.Name] = t
		r.tools = append(r.tools, t)
		r.infos = append(r.infos, t.Info())
	}
	return r, nil
}

// DefaultRegistry returns the registry of every database tool.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultTools()...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultTools returns the database tools in catalog order.
func DefaultTools() []*Tool {
	return []*Tool{
		aggregateTool(),
		sampleTool(),
		explainTool(),
		findTool(),
		findOneTool(),
		countTool(),
		listCollectionsTool(),
		distinctTool(),
		listDatabasesTool(),
		insertOneTool(),
		insertManyTool(),
		updateOneTool(),
		updateManyTool(),
		deleteOneTool(),
		deleteManyTool(),
		dropCollectionTool(),
	}
}

// List returns the tools in catalog order.
func (r *Registry) List() []*Tool {
	out := make([]*Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Infos returns the listing of every tool in catalog order.
func (r *Registry) Infos() []ToolInfo {
	out := make([]ToolInfo, len(r.infos))
	copy(out, r.infos)
	return out
}

// Lookup resolves a tool by exact name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func bound(v float64) *float64 {
	return &v
}
