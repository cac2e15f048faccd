// ABOUTME: Thread-safe registry mapping tool names to their definitions and handlers.
// ABOUTME: Registration is an unconditional upsert; listing is sorted by name.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

// ErrToolNotFound indicates no tool is registered under the requested name.
var ErrToolNotFound = errors.New("tool not found")

// ToolHandler executes a tool with its JSON arguments.
// A returned error is reported to the client as a tool-level failure.
type ToolHandler func(ctx context.Context, arguments json.RawMessage) (*ToolResult, error)

// ToolRegistrar is implemented by anything tools can be registered into.
type ToolRegistrar interface {
	RegisterTool(name, description string, inputSchema json.RawMessage, handler ToolHandler)
}

// ToolPack is a named set of tools registered on the first successful initialize.
type ToolPack interface {
	RegisterTools(r ToolRegistrar)
}

// ToolDefinition is a registered tool. Immutable once stored.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     ToolHandler
}

// ToolRegistry maintains the registered tools.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolDefinition
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*ToolDefinition),
	}
}

// RegisterTool stores a tool, replacing any tool with the same name.
func (r *ToolRegistry) RegisterTool(name, description string, inputSchema json.RawMessage, handler ToolHandler) {
	// Copy the schema so later mutation by the caller cannot leak in.
	schema := make(json.RawMessage, len(inputSchema))
	copy(schema, inputSchema)

	r.mu.Lock()
	r.tools[name] = &ToolDefinition{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Handler:     handler,
	}
	r.mu.Unlock()
}

// Lookup returns the tool registered under name.
func (r *ToolRegistry) Lookup(name string) (*ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Invoke looks up a tool and calls its handler.
// Returns ErrToolNotFound if the name is absent.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, arguments json.RawMessage) (*ToolResult, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return nil, ErrToolNotFound
	}
	return tool.Handler(ctx, arguments)
}

// List returns every registered tool sorted by name.
func (r *ToolRegistry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(r.tools))
	for _, tool := range r.tools {
		schema := tool.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		infos = append(infos, ToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
