// ABOUTME: Transport abstraction carrying JSON-RPC messages between clients and the dispatch engine.
// ABOUTME: Implementations deliver each inbound message to a RequestHandler exactly once.

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/sysml-mcp/internal/mcp"
)

// Sentinel errors for transport lifecycle misuse.
var (
	ErrAlreadyRunning = errors.New("transport already running")
	ErrNotRunning     = errors.New("transport not running")
)

// RequestHandler turns one raw JSON-RPC request into one raw JSON-RPC response.
// mcp.Server.HandleRequest satisfies it.
type RequestHandler func(ctx context.Context, request json.RawMessage) json.RawMessage

// Transport moves requests from a client to a handler and responses back.
type Transport interface {
	// Start begins delivering messages to handler and returns once the transport is accepting.
	Start(ctx context.Context, handler RequestHandler) error
	// Stop ceases delivery. Calling Stop on a stopped transport returns ErrNotRunning.
	Stop() error
	IsRunning() bool
	// Done is closed when the transport ends on its own or after Stop.
	Done() <-chan struct{}
}

// parseErrorResponse builds the response sent when an inbound message is not JSON.
func parseErrorResponse(message string) json.RawMessage {
	out, err := json.Marshal(mcp.JSONRPCResponse{
		JSONRPC: mcp.JSONRPCVersion,
		Error: &mcp.JSONRPCError{
			Code:    mcp.JSONRPCParseError,
			Message: message,
		},
	})
	if err != nil {
		return json.RawMessage(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`)
	}
	return out
}

// checkJSON reports why raw is not a single JSON value, or nil.
func checkJSON(raw []byte) error {
	var probe json.RawMessage
	return json.Unmarshal(raw, &probe)
}

// safeHandle calls handler, converting a panic into a JSON-RPC error response.
func safeHandle(ctx context.Context, handler RequestHandler, request json.RawMessage, logger *slog.Logger) (resp json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("request handler panicked", "panic", r)
			out, err := json.Marshal(mcp.JSONRPCResponse{
				JSONRPC: mcp.JSONRPCVersion,
				Error: &mcp.JSONRPCError{
					Code:    mcp.CodeDispatchError,
					Message: fmt.Sprintf("internal error: %v", r),
				},
			})
			if err != nil {
				out = json.RawMessage(`{"jsonrpc":"2.0","id":null,"error":{"code":-1,"message":"internal error"}}`)
			}
			resp = out
		}
	}()
	return handler(ctx, request)
}
