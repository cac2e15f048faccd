// ABOUTME: HTTP transport serving JSON-RPC on POST /mcp plus /health and /info endpoints.
// ABOUTME: Adds CORS headers, request ids and an access log; listens on TCP or a tailnet.

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/sysml-mcp/internal/mcp"
)

// Defaults for HTTPConfig zero values.
const (
	DefaultAddr              = "127.0.0.1:8080"
	DefaultMaxBodyBytes      = 1 << 20
	DefaultReadHeaderTimeout = 10 * time.Second
	shutdownTimeout          = 5 * time.Second
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Addr              string
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	ServerName        string
	ServerVersion     string
	// Tailnet, when set, replaces the TCP listener with a tsnet listener.
	Tailnet *TailnetConfig
	Logger  *slog.Logger
}

// HTTP is a request/response transport: every POST /mcp is one handler call.
type HTTP struct {
	cfg    HTTPConfig
	logger *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	tailnet  io.Closer
	done     chan struct{}
	running  atomic.Bool
}

// NewHTTP creates an HTTP transport. Zero config values take the package defaults.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		cfg:    cfg,
		logger: logger.With("component", "http_transport"),
		done:   make(chan struct{}),
	}
}

// Handler returns the full HTTP handler, middleware included, dispatching to handler.
func (t *HTTP) Handler(handler RequestHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp", t.handleMCP(handler))
	mux.HandleFunc("GET /health", t.handleHealth)
	mux.HandleFunc("GET /info", t.handleInfo)
	mux.HandleFunc("/", handleUnrouted)
	return withCORS(t.withAccessLog(mux))
}

// routeMethods lists the method served on each known path.
var routeMethods = map[string]string{
	"/mcp":    http.MethodPost,
	"/health": http.MethodGet,
	"/info":   http.MethodGet,
}

// handleUnrouted answers wrong methods and unknown paths with JSON-RPC error bodies.
func handleUnrouted(w http.ResponseWriter, r *http.Request) {
	if allowed, ok := routeMethods[r.URL.Path]; ok {
		w.Header().Set("Allow", allowed)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody(mcp.JSONRPCInvalidRequest, "method not allowed: "+r.Method))
		return
	}
	writeJSON(w, http.StatusNotFound, errorBody(mcp.JSONRPCInvalidRequest, "not found: "+r.URL.Path))
}

// Start opens the listener and serves in the background.
func (t *HTTP) Start(ctx context.Context, handler RequestHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running.Load() {
		return ErrAlreadyRunning
	}

	ln, err := t.listen(ctx)
	if err != nil {
		return err
	}

	t.listener = ln
	t.server = &http.Server{
		Handler:           t.Handler(handler),
		ReadHeaderTimeout: t.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	t.done = make(chan struct{})
	t.running.Store(true)

	go t.serve(t.server, ln, t.done)

	t.logger.Info("HTTP transport listening",
		"server", t.cfg.ServerName,
		"addr", ln.Addr().String(),
		"tailnet", t.cfg.Tailnet != nil,
	)
	return nil
}

func (t *HTTP) listen(ctx context.Context) (net.Listener, error) {
	if t.cfg.Tailnet != nil {
		ln, closer, err := ListenTailnet(ctx, *t.cfg.Tailnet, t.logger)
		if err != nil {
			return nil, err
		}
		t.tailnet = closer
		return ln, nil
	}

	ln, err := net.Listen("tcp", t.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", t.cfg.Addr, err)
	}
	return ln, nil
}

func (t *HTTP) serve(server *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)
	defer t.running.Store(false)

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		t.logger.Error("HTTP server failed", "error", err)
	}
}

// Stop shuts the server down gracefully, waiting up to five seconds for in-flight requests.
func (t *HTTP) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.server == nil {
		return ErrNotRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := t.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if t.tailnet != nil {
		if err := t.tailnet.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
		t.tailnet = nil
	}

	<-t.done
	t.server = nil
	t.logger.Info("HTTP transport stopped")
	return errors.Join(errs...)
}

// IsRunning reports whether the server is serving.
func (t *HTTP) IsRunning() bool {
	return t.running.Load()
}

// Done is closed when the server stops serving.
func (t *HTTP) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Addr returns the bound listener address, or nil before Start.
func (t *HTTP) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *HTTP) handleMCP(handler RequestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, t.cfg.MaxBodyBytes+1))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, parseErrorResponse("failed to read request body: "+err.Error()))
			return
		}
		if int64(len(body)) > t.cfg.MaxBodyBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(mcp.JSONRPCInvalidRequest, "request body too large"))
			return
		}

		if err := checkJSON(body); err != nil {
			t.logger.Warn("received malformed JSON", "error", err, "request_id", requestIDFrom(r))
			writeJSON(w, http.StatusBadRequest, parseErrorResponse(err.Error()))
			return
		}

		t.logger.Debug("MCP request received", "request_id", requestIDFrom(r), "bytes", len(body))
		resp := safeHandle(r.Context(), handler, body, t.logger)
		writeJSON(w, http.StatusOK, resp)
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

func (t *HTTP) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeValue(w, healthResponse{Status: "ok", Timestamp: time.Now().Unix()}, t.logger)
}

type infoResponse struct {
	Server    string            `json:"server"`
	Version   string            `json:"version"`
	Transport string            `json:"transport"`
	Endpoints map[string]string `json:"endpoints"`
}

func (t *HTTP) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeValue(w, infoResponse{
		Server:    t.cfg.ServerName,
		Version:   t.cfg.ServerVersion,
		Transport: "HTTP",
		Endpoints: map[string]string{
			"mcp":    "/mcp",
			"health": "/health",
			"info":   "/info",
		},
	}, t.logger)
}

func errorBody(code int, message string) json.RawMessage {
	out, _ := json.Marshal(mcp.JSONRPCResponse{
		JSONRPC: mcp.JSONRPCVersion,
		Error:   &mcp.JSONRPCError{Code: code, Message: message},
	})
	return out
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeValue(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}
