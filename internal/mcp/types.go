// ABOUTME: JSON-RPC 2.0 envelope types and MCP result payloads used by the dispatch engine.
// ABOUTME: Error codes and protocol version constants live here too.

package mcp

import "encoding/json"

// Protocol constants. Both versions must match exactly.
const (
	JSONRPCVersion           = "2.0"
	SupportedProtocolVersion = "2024-11-05"
)

// JSON-RPC error codes produced by the engine and its transports.
const (
	// CodeDispatchError is the generic code for every envelope and routing failure.
	CodeDispatchError     = -1
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
)

// JSONRPCResponse represents a JSON-RPC 2.0 response.
// A nil ID marshals as null.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextContent builds a single text content item.
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// ToolResult is what a tool handler produces on success.
type ToolResult struct {
	Content []Content `json:"content"`
}

// TextResult wraps text into a ToolResult with one text item.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []Content{TextContent(text)}}
}

// CallToolResult is the result for tools/call. IsError is always serialized.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// ToolInfo describes a tool in tools/list.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// ResourceInfo describes a resource in resources/list.
type ResourceInfo struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// ListResourcesResult is the result for resources/list.
type ListResourcesResult struct {
	Resources []ResourceInfo `json:"resources"`
}

// ResourceContents is one entry of a resources/read result.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// ReadResourceResult is the result for resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// ServerInfo identifies the server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result for initialize.
type InitializeResult struct {
	ProtocolVersion string                     `json:"protocolVersion"`
	Capabilities    map[string]json.RawMessage `json:"capabilities"`
	ServerInfo      ServerInfo                 `json:"serverInfo"`
}
