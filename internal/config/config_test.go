// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, defaults, env var expansion, overrides and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, TransportStdio, cfg.Transport.Kind)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, "http://localhost:9000", cfg.SysML.URL)
	assert.Equal(t, 30*time.Second, cfg.SysML.Timeout)
	assert.Zero(t, cfg.SysML.CacheTTL, "cache disabled by default")
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  name: "modeling-mcp"
  version: "1.0.0"
transport:
  kind: "http"
http:
  addr: "0.0.0.0:9090"
  max_body_bytes: 2048
  read_header_timeout: "3s"
sysml:
  url: "https://sysml.example.com/api"
  timeout: "5s"
  cache_ttl: "1m"
  cache_size: 10
  headers:
    Authorization: "Bearer abc"
logging:
  level: "debug"
  format: "json"
  file: "/tmp/sysml-mcp.log"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "modeling-mcp", cfg.Server.Name)
	assert.Equal(t, "1.0.0", cfg.Server.Version)
	assert.Equal(t, TransportHTTP, cfg.Transport.Kind)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr)
	assert.Equal(t, int64(2048), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadHeaderTimeout)
	assert.Equal(t, "https://sysml.example.com/api", cfg.SysML.URL)
	assert.Equal(t, 5*time.Second, cfg.SysML.Timeout)
	assert.Equal(t, time.Minute, cfg.SysML.CacheTTL)
	assert.Equal(t, 10, cfg.SysML.CacheSize)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, cfg.SysML.Headers)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp/sysml-mcp.log", cfg.Logging.File)
	require.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "config.yml", `
logging:
  level: "info"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, TransportStdio, cfg.Transport.Kind)
	assert.Equal(t, "http://localhost:9000", cfg.SysML.URL)
	assert.Equal(t, 30*time.Second, cfg.SysML.Timeout)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
name = "toml-mcp"

[transport]
kind = "http"

[tailscale]
enabled = true
hostname = "sysml"
ephemeral = true
funnel = true

[sysml]
url = "http://sysml.internal:9000"
cache_ttl = "30s"

[sysml.headers]
X-Api-Key = "k"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "toml-mcp", cfg.Server.Name)
	assert.Equal(t, TransportHTTP, cfg.Transport.Kind)
	assert.True(t, cfg.Tailscale.Enabled)
	assert.Equal(t, "sysml", cfg.Tailscale.Hostname)
	assert.True(t, cfg.Tailscale.Ephemeral)
	assert.True(t, cfg.Tailscale.Funnel)
	assert.Equal(t, "http://sysml.internal:9000", cfg.SysML.URL)
	assert.Equal(t, 30*time.Second, cfg.SysML.CacheTTL)
	assert.Equal(t, "k", cfg.SysML.Headers["X-Api-Key"])
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_SYSML_URL", "http://from-env:9000")
	t.Setenv("TEST_SYSML_TOKEN", "secret")

	path := writeConfig(t, "config.yaml", `
sysml:
  url: "${TEST_SYSML_URL}"
  headers:
    Authorization: "Bearer ${TEST_SYSML_TOKEN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:9000", cfg.SysML.URL)
	assert.Equal(t, "Bearer secret", cfg.SysML.Headers["Authorization"])
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/path/config.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", "server: [unclosed")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing config file")
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := writeConfig(t, "config.toml", "[server\nname = 1")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing config file")
	})

	t.Run("invalid duration", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", `
sysml:
  timeout: "soon"
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing timeout")
	})
}

func TestResolve(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		cfg, err := Resolve("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("env var names file", func(t *testing.T) {
		path := writeConfig(t, "env.yaml", "server:\n  name: from-env-file\n")
		t.Setenv(EnvConfigPath, path)
		cfg, err := Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "from-env-file", cfg.Server.Name)
	})

	t.Run("explicit path wins", func(t *testing.T) {
		envPath := writeConfig(t, "env.yaml", "server:\n  name: from-env-file\n")
		flagPath := writeConfig(t, "flag.yaml", "server:\n  name: from-flag-file\n")
		t.Setenv(EnvConfigPath, envPath)
		cfg, err := Resolve(flagPath)
		require.NoError(t, err)
		assert.Equal(t, "from-flag-file", cfg.Server.Name)
	})
}

func TestApply(t *testing.T) {
	cfg := Default()
	cfg.Logging.File = "keep.log"

	cfg.Apply(Overrides{
		Transport: "HTTP",
		Addr:      "127.0.0.1:9999",
		URL:       "https://override:9000",
		LogLevel:  "WARN",
	})

	assert.Equal(t, TransportHTTP, cfg.Transport.Kind)
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, "https://override:9000", cfg.SysML.URL)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "keep.log", cfg.Logging.File, "empty overrides are ignored")
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing name", func(c *Config) { c.Server.Name = "" }, "server.name is required"},
		{"bad transport", func(c *Config) { c.Transport.Kind = "websocket" }, "transport.kind"},
		{"http without addr", func(c *Config) {
			c.Transport.Kind = TransportHTTP
			c.HTTP.Addr = ""
		}, "http.addr is required"},
		{"tailscale without hostname", func(c *Config) {
			c.Tailscale.Enabled = true
			c.Tailscale.Hostname = ""
		}, "tailscale.hostname is required"},
		{"relative url", func(c *Config) { c.SysML.URL = "/api" }, "sysml.url"},
		{"ftp url", func(c *Config) { c.SysML.URL = "ftp://x" }, "sysml.url"},
		{"negative cache size", func(c *Config) { c.SysML.CacheSize = -1 }, "sysml.cache_size"},
		{"unknown level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("http with tailscale needs no addr", func(t *testing.T) {
		cfg := Default()
		cfg.Transport.Kind = TransportHTTP
		cfg.HTTP.Addr = ""
		cfg.Tailscale.Enabled = true
		require.NoError(t, cfg.Validate())
	})
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_EXPAND_A", "alpha")

	assert.Equal(t, "x-alpha-y", expandEnvVars("x-${TEST_EXPAND_A}-y"))
	assert.Equal(t, "x--y", expandEnvVars("x-${TEST_EXPAND_UNSET_VAR}-y"))
	assert.Equal(t, "no vars", expandEnvVars("no vars"))
}
