// ABOUTME: Outbound REST client used by tool packs to call external HTTP APIs.
// ABOUTME: Normalizes responses into status, headers, body and parsed JSON, with an optional GET cache.

package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/2389/sysml-mcp/internal/cache"
)

// DefaultTimeout bounds every outbound request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// DefaultCacheSize is used when caching is enabled without an explicit size.
const DefaultCacheSize = 256

const jsonMIMEType = "application/json"

// Response is a normalized HTTP response.
type Response struct {
	Status  int
	Headers map[string]string
	Body    string
	// JSON holds the parsed body, or nil when the body is empty or not JSON.
	JSON json.RawMessage
}

// IsSuccess reports whether the status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// Config configures a Client.
type Config struct {
	Timeout time.Duration
	// CacheTTL enables caching of successful GET responses when positive.
	CacheTTL  time.Duration
	CacheSize int
	// Headers are sent with every request; per-request headers win on conflict.
	Headers    map[string]string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client performs outbound REST calls.
type Client struct {
	http    *http.Client
	headers map[string]string
	cache   *cache.Cache[*Response]
	logger  *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		http:    httpClient,
		headers: make(map[string]string, len(cfg.Headers)),
		logger:  logger,
	}
	for k, v := range cfg.Headers {
		c.headers[k] = v
	}

	if cfg.CacheTTL > 0 {
		size := cfg.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		c.cache = cache.New[*Response](cfg.CacheTTL, size)
	}

	return c
}

// Close releases the response cache.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.Request(ctx, http.MethodGet, rawURL, nil, headers)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, rawURL string, body any, headers map[string]string) (*Response, error) {
	return c.Request(ctx, http.MethodPost, rawURL, body, headers)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, rawURL string, body any, headers map[string]string) (*Response, error) {
	return c.Request(ctx, http.MethodPut, rawURL, body, headers)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, rawURL, nil, headers)
}

// Request performs an HTTP request. A non-nil body is encoded as JSON.
// Non-2xx statuses are not errors; callers inspect Response.Status.
func (c *Client) Request(ctx context.Context, method, rawURL string, body any, headers map[string]string) (*Response, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("Unsupported HTTP method: %s", method)
	}

	merged := c.mergeHeaders(headers)

	var key string
	if method == http.MethodGet && c.cache != nil {
		key = cacheKey(rawURL, merged)
		if resp, ok := c.cache.Get(key); ok {
			c.logger.Debug("tool client cache hit", "url", rawURL)
			return resp, nil
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
		merged["Content-Type"] = jsonMIMEType
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range merged {
		req.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		Status:  httpResp.StatusCode,
		Headers: make(map[string]string, len(httpResp.Header)),
		Body:    string(raw),
	}
	for k := range httpResp.Header {
		resp.Headers[k] = httpResp.Header.Get(k)
	}
	if len(bytes.TrimSpace(raw)) > 0 && json.Valid(raw) {
		resp.JSON = json.RawMessage(raw)
	}

	c.logger.Debug("tool client request",
		"method", method,
		"url", rawURL,
		"status", resp.Status,
		"duration", time.Since(start),
	)

	if key != "" && resp.IsSuccess() {
		c.cache.Put(key, resp)
	}

	return resp, nil
}

func (c *Client) mergeHeaders(headers map[string]string) map[string]string {
	merged := make(map[string]string, len(c.headers)+len(headers))
	for k, v := range c.headers {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	return merged
}

// validateURL accepts only absolute http or https URLs with a host.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("Invalid URL format: %s", rawURL)
	}
	return nil
}

func cacheKey(rawURL string, headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(rawURL)
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(headers[k])
	}
	return b.String()
}
