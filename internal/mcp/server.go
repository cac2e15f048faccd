// ABOUTME: MCP dispatch engine turning one JSON-RPC request into one JSON-RPC response.
// ABOUTME: Tracks the initialize handshake and routes to the tool and resource registries.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Config holds configuration for the MCP server.
type Config struct {
	Name    string
	Version string
	Logger  *slog.Logger
	// Packs are registered, after the echo tool, on the first successful initialize.
	Packs []ToolPack
}

// Server is the dispatch engine. It owns both registries and the initialization state.
// HandleRequest is safe for concurrent use.
type Server struct {
	name         string
	version      string
	logger       *slog.Logger
	packs        []ToolPack
	capabilities map[string]json.RawMessage

	tools     *ToolRegistry
	resources *ResourceRegistry

	// mu guards initialized and serializes initialize-time registration
	// against dispatch-time registry reads.
	mu          sync.RWMutex
	initialized bool
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, errors.New("server name is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	packs := make([]ToolPack, len(cfg.Packs))
	copy(packs, cfg.Packs)

	return &Server{
		name:    cfg.Name,
		version: cfg.Version,
		logger:  logger,
		packs:   packs,
		capabilities: map[string]json.RawMessage{
			"tools":     json.RawMessage(`{}`),
			"resources": json.RawMessage(`{}`),
			"prompts":   json.RawMessage(`{}`),
			"logging":   json.RawMessage(`{}`),
		},
		tools:     NewToolRegistry(),
		resources: NewResourceRegistry(),
	}, nil
}

// RegisterTool adds or replaces a tool.
func (s *Server) RegisterTool(name, description string, inputSchema json.RawMessage, handler ToolHandler) {
	s.tools.RegisterTool(name, description, inputSchema, handler)
}

// RegisterResource adds or replaces a resource.
func (s *Server) RegisterResource(name, uri, description, mimeType string, handler ResourceHandler) {
	s.resources.RegisterResource(name, uri, description, mimeType, handler)
}

// Initialized reports whether the initialize handshake has completed.
func (s *Server) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// HandleRequest dispatches one raw JSON-RPC request and returns the encoded response.
// It never panics and always returns a JSON-RPC 2.0 response object.
func (s *Server) HandleRequest(ctx context.Context, request json.RawMessage) json.RawMessage {
	resp := s.Dispatch(ctx, request)

	out, err := json.Marshal(resp)
	if err == nil {
		return out
	}

	s.logger.Error("failed to encode JSON-RPC response", "error", err)
	out, err = json.Marshal(errorResponse(resp.ID, CodeDispatchError, "failed to encode response: "+err.Error()))
	if err != nil {
		return json.RawMessage(`{"jsonrpc":"2.0","id":null,"error":{"code":-1,"message":"failed to encode response"}}`)
	}
	return out
}

// Dispatch is HandleRequest without the final encoding step.
func (s *Server) Dispatch(ctx context.Context, request json.RawMessage) (resp JSONRPCResponse) {
	// A request that is not a JSON object leaves envelope nil and fails the version check.
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(request, &envelope); err != nil {
		envelope = nil
	}
	id := envelope["id"]

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during dispatch", "panic", r)
			resp = errorResponse(id, CodeDispatchError, fmt.Sprint(r))
		}
	}()

	result, derr := s.dispatch(ctx, envelope)
	if derr != nil {
		s.logger.Debug("request failed", "code", derr.code, "error", derr.message)
		return errorResponse(id, derr.code, derr.message)
	}

	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

func (s *Server) dispatch(ctx context.Context, envelope map[string]json.RawMessage) (any, *dispatchError) {
	if derr := checkJSONRPCVersion(envelope); derr != nil {
		return nil, derr
	}

	method, derr := stringParam(envelope, "method")
	if derr != nil {
		return nil, derr
	}

	params := objectParam(envelope, "params")

	s.logger.Debug("dispatching request", "method", method)

	switch method {
	case "initialize":
		return s.handleInitialize(params)
	case "tools/list":
		return s.handleToolsList()
	case "tools/call":
		return s.handleToolsCall(ctx, params)
	case "resources/list":
		return s.handleResourcesList()
	case "resources/read":
		return s.handleResourcesRead(ctx, params)
	default:
		return nil, &dispatchError{code: CodeDispatchError, message: "Unknown method: " + method}
	}
}

// handleInitialize performs the handshake once; later calls return the same result.
func (s *Server) handleInitialize(params map[string]json.RawMessage) (any, *dispatchError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		if derr := checkProtocolVersion(params); derr != nil {
			return nil, derr
		}

		registerEchoTool(s.tools)
		for _, pack := range s.packs {
			pack.RegisterTools(s.tools)
		}
		s.initialized = true

		s.logger.Info("MCP server initialized",
			"protocol_version", SupportedProtocolVersion,
			"tool_count", s.tools.Len(),
			"resource_count", s.resources.Len(),
		)
	}

	return InitializeResult{
		ProtocolVersion: SupportedProtocolVersion,
		Capabilities:    s.capabilities,
		ServerInfo: ServerInfo{
			Name:    s.name,
			Version: s.version,
		},
	}, nil
}

// handleToolsList handles tools/list requests.
func (s *Server) handleToolsList() (any, *dispatchError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized()
	}

	tools := s.tools.List()
	s.logger.Debug("tools/list", "count", len(tools))
	return ListToolsResult{Tools: tools}, nil
}

// handleToolsCall handles tools/call requests.
// Handler failures are reported inside the result, not as JSON-RPC errors.
func (s *Server) handleToolsCall(ctx context.Context, params map[string]json.RawMessage) (any, *dispatchError) {
	name, derr := s.initializedParam(params, "name")
	if derr != nil {
		return nil, derr
	}

	arguments := params["arguments"]
	if len(arguments) == 0 || string(arguments) == "null" {
		arguments = json.RawMessage(`{}`)
	}

	requestID := uuid.New().String()
	s.logger.Debug("tools/call",
		"tool_name", name,
		"request_id", requestID,
	)

	result, err := s.invokeTool(ctx, name, arguments)
	if errors.Is(err, ErrToolNotFound) {
		return nil, &dispatchError{code: CodeDispatchError, message: "Tool not found: " + name}
	}

	s.logger.Debug("tools/call complete",
		"tool_name", name,
		"request_id", requestID,
		"is_error", result.IsError,
	)
	return result, nil
}

// initializedParam reads a required string param once the handshake is done.
// The engine lock is held only for the check; handlers run outside it.
func (s *Server) initializedParam(params map[string]json.RawMessage, name string) (string, *dispatchError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return "", errNotInitialized()
	}
	return stringParam(params, name)
}

// invokeTool runs the tool through the registry and converts handler failures,
// including panics, into an isError result. Only ErrToolNotFound is returned.
func (s *Server) invokeTool(ctx context.Context, name string, arguments json.RawMessage) (result CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool handler panicked", "tool_name", name, "panic", r)
			result, err = toolFailure(name, fmt.Errorf("%v", r)), nil
		}
	}()

	out, err := s.tools.Invoke(ctx, name, arguments)
	if errors.Is(err, ErrToolNotFound) {
		return CallToolResult{}, err
	}
	if err != nil {
		s.logger.Warn("tool execution failed", "tool_name", name, "error", err)
		return toolFailure(name, err), nil
	}

	content := []Content{}
	if out != nil && out.Content != nil {
		content = out.Content
	}
	return CallToolResult{Content: content, IsError: false}, nil
}

func toolFailure(name string, err error) CallToolResult {
	return CallToolResult{
		Content: []Content{TextContent(fmt.Sprintf("Error executing tool '%s'. Reason: %s", name, err.Error()))},
		IsError: true,
	}
}

// handleResourcesList handles resources/list requests.
func (s *Server) handleResourcesList() (any, *dispatchError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized()
	}

	return ListResourcesResult{Resources: s.resources.List()}, nil
}

// handleResourcesRead handles resources/read requests.
// Unlike tools, handler failures surface as JSON-RPC errors.
func (s *Server) handleResourcesRead(ctx context.Context, params map[string]json.RawMessage) (any, *dispatchError) {
	uri, derr := s.initializedParam(params, "uri")
	if derr != nil {
		return nil, derr
	}

	contents, err := s.readResource(ctx, uri)
	if errors.Is(err, ErrResourceNotFound) {
		return nil, &dispatchError{code: CodeDispatchError, message: "Resource not found: " + uri}
	}
	if err != nil {
		s.logger.Warn("resource read failed", "uri", uri, "error", err)
		return nil, &dispatchError{code: CodeDispatchError, message: "Error reading resource: " + err.Error()}
	}

	return ReadResourceResult{Contents: []ResourceContents{contents}}, nil
}

func (s *Server) readResource(ctx context.Context, uri string) (contents ResourceContents, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("resource handler panicked", "uri", uri, "panic", r)
			err = fmt.Errorf("%v", r)
		}
	}()
	return s.resources.Read(ctx, uri)
}

func errorResponse(id json.RawMessage, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}
