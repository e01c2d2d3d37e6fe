package mcp

import (
	"encoding/json"
	"fmt"
)

// Envelope is the outcome of one request: exactly one of Result or Error
// is set.
type Envelope struct {
	Result interface{}
	Error  *Error
}

// Content is a typed block of tool output.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the success payload of tools/call.
type ToolResult struct {
	Content []Content `json:"content"`
}

func success(result interface{}) Envelope {
	return Envelope{Result: result}
}

func failure(code int, message string, data interface{}) Envelope {
	return Envelope{Error: &Error{Code: code, Message: message, Data: data}}
}

// internalError is the uniform shape of every validation, connection and
// handler failure.
func internalError(err error) Envelope {
	return failure(CodeInternalError, "Internal server error", map[string]string{
		"details": err.Error(),
	})
}

func textResult(text string) *ToolResult {
	return &ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// jsonResult renders v as indented JSON text.
func jsonResult(v interface{}) (*ToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render result: %w", err)
	}
	return textResult(string(out)), nil
}
