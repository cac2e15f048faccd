// ABOUTME: Configuration loading and parsing for sysml-mcp
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults and flag overrides

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/sysml-mcp/internal/logging"
)

// EnvConfigPath names the environment variable holding a default config file path.
const EnvConfigPath = "SYSML_MCP_CONFIG"

// Transport kinds.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config represents the complete sysml-mcp configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	HTTP      HTTPConfig      `yaml:"http" toml:"http"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	SysML     SysMLConfig     `yaml:"sysml" toml:"sysml"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig identifies the server in initialize results and /info.
type ServerConfig struct {
	Name    string `yaml:"name" toml:"name"`
	Version string `yaml:"version" toml:"version"`
}

// TransportConfig selects how MCP messages reach the server.
type TransportConfig struct {
	Kind string `yaml:"kind" toml:"kind"`
}

// HTTPConfig holds HTTP transport settings
type HTTPConfig struct {
	Addr              string        `yaml:"addr" toml:"addr"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" toml:"max_body_bytes"`
	ReadHeaderTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout" toml:"read_header_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve TLS with Tailscale certs
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// SysMLConfig holds settings for the SysML v2 API the tools talk to
type SysMLConfig struct {
	URL       string            `yaml:"url" toml:"url"`
	CacheSize int               `yaml:"cache_size" toml:"cache_size"`
	Headers   map[string]string `yaml:"headers" toml:"headers"`

	Timeout  time.Duration `yaml:"-" toml:"-"`
	CacheTTL time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TimeoutRaw  string `yaml:"timeout" toml:"timeout"`
	CacheTTLRaw string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"`
}

// Overrides carries command-line values that win over the file. Empty fields are ignored.
type Overrides struct {
	Transport string
	Addr      string
	URL       string
	LogLevel  string
	LogFile   string
}

// Default returns a complete configuration usable without any file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "sysml-mcp",
			Version: "dev",
		},
		Transport: TransportConfig{Kind: TransportStdio},
		HTTP: HTTPConfig{
			Addr:              "127.0.0.1:8080",
			MaxBodyBytes:      1 << 20,
			ReadHeaderTimeout: 10 * time.Second,
		},
		Tailscale: TailscaleConfig{
			Hostname: "sysml-mcp",
		},
		SysML: SysMLConfig{
			URL:       "http://localhost:9000",
			Timeout:   30 * time.Second,
			CacheSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "error",
			Format: "text",
		},
	}
}

// Load reads a configuration file and overlays it on Default().
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	return cfg, nil
}

// Resolve loads path if set, else the file named by SYSML_MCP_CONFIG if set, else Default().
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Apply copies non-empty overrides into c.
func (c *Config) Apply(o Overrides) {
	if o.Transport != "" {
		c.Transport.Kind = strings.ToLower(o.Transport)
	}
	if o.Addr != "" {
		c.HTTP.Addr = o.Addr
	}
	if o.URL != "" {
		c.SysML.URL = o.URL
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFile != "" {
		c.Logging.File = o.LogFile
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name is required")
	}

	switch c.Transport.Kind {
	case TransportStdio:
	case TransportHTTP:
		if !c.Tailscale.Enabled && c.HTTP.Addr == "" {
			return fmt.Errorf("http.addr is required (or enable tailscale)")
		}
		if c.HTTP.MaxBodyBytes < 0 {
			return fmt.Errorf("http.max_body_bytes must not be negative")
		}
	default:
		return fmt.Errorf("transport.kind must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Transport.Kind)
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	u, err := url.Parse(c.SysML.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("sysml.url must be an absolute http(s) URL, got %q", c.SysML.URL)
	}
	if c.SysML.CacheSize < 0 {
		return fmt.Errorf("sysml.cache_size must not be negative")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.HTTP.ReadHeaderTimeoutRaw != "" {
		cfg.HTTP.ReadHeaderTimeout, err = time.ParseDuration(cfg.HTTP.ReadHeaderTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing read_header_timeout %q: %w", cfg.HTTP.ReadHeaderTimeoutRaw, err)
		}
	}

	if cfg.SysML.TimeoutRaw != "" {
		cfg.SysML.Timeout, err = time.ParseDuration(cfg.SysML.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.SysML.TimeoutRaw, err)
		}
	}

	if cfg.SysML.CacheTTLRaw != "" {
		cfg.SysML.CacheTTL, err = time.ParseDuration(cfg.SysML.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache_ttl %q: %w", cfg.SysML.CacheTTLRaw, err)
		}
	}

	return nil
}
