// Package mcp implements the Model Context Protocol dispatch engine.
//
// # Overview
//
// The engine accepts one JSON-RPC 2.0 request as raw JSON and always produces
// one JSON-RPC 2.0 response. It is transport agnostic: the transport package
// feeds it lines from stdin or bodies from HTTP POST requests.
//
// # Lifecycle
//
// A Server starts uninitialized. The first initialize request carrying the
// supported protocol version registers the built-in echo tool and every
// configured ToolPack, then flips the server to initialized. Later initialize
// requests return the same result without registering anything again.
// All other methods fail with "MCP Server not initialized!" until then.
//
// # Methods
//
//   - initialize
//   - tools/list
//   - tools/call
//   - resources/list
//   - resources/read
//
// # Error Reporting
//
// Envelope and routing failures, unknown methods included, become JSON-RPC
// error objects with code -1. A failing tool handler does not
// produce a JSON-RPC error: the call succeeds with isError set and the reason
// in the content text. A failing resource handler does produce a JSON-RPC
// error. Clients depend on this difference.
//
// # Usage
//
//	server, err := mcp.NewServer(mcp.Config{
//	    Name:    "sysml-mcp",
//	    Version: "0.1.0",
//	    Packs:   []mcp.ToolPack{sysmlPack},
//	})
//	server.RegisterResource("Endpoint", "sysml://api/endpoint", "", "application/json", handler)
//	resp := server.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
package mcp
