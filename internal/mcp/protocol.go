package mcp

// JSON-RPC error codes used by the server.
const (
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

const protocolVersion = "2024-11-05"

// Response is a JSON-RPC response
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error is a JSON-RPC error
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// InitializeResult is the result of initialize
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// ServerInfo contains server information
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities contains server capabilities
type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

// ToolsCapability contains tools capability
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability contains resources capability
type ResourcesCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// Resource describes an addressable collection
type Resource struct {
	URI         string `json:"uri"`
	MimeType    string `json:"mimeType"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
