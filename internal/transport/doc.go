// Package transport carries JSON-RPC messages between MCP clients and the dispatch engine.
//
// # Stdio
//
// Stdio reads newline-delimited JSON from an io.Reader and writes one response
// line per request. Blank lines are ignored. Lines that are not JSON get a
// -32700 error response and reading continues. EOF ends the transport.
//
// # HTTP
//
//   - POST /mcp - one JSON-RPC request per body, response in the body
//   - GET /health - liveness with a unix timestamp
//   - GET /info - server name, version and endpoint paths
//
// Wrong methods get a 405 and unknown paths a 404, both with a JSON-RPC
// error body. Every response carries permissive CORS headers and an X-Request-Id. The
// listener is plain TCP or, with a TailnetConfig, a tsnet node.
package transport
