// Package config handles configuration loading for sysml-mcp.
//
// # Overview
//
// Configuration starts from Default() and is optionally overlaid by a YAML or
// TOML file, then by command-line overrides. Validate is called last.
//
// # Configuration File
//
// The file is chosen in this order:
//
//  1. The --config flag
//  2. Path from the SYSML_MCP_CONFIG environment variable
//  3. None: built-in defaults only
//
// Files ending in .toml are parsed as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	sysml:
//	  headers:
//	    Authorization: "Bearer ${SYSML_API_TOKEN}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sysml:
//	  timeout: "30s"
//	  cache_ttl: "1m"
//
// # Example
//
//	server:
//	  name: "sysml-mcp"
//	transport:
//	  kind: "http"
//	http:
//	  addr: "127.0.0.1:8080"
//	tailscale:
//	  enabled: false
//	sysml:
//	  url: "http://localhost:9000"
//	logging:
//	  level: "info"
//	  format: "text"
package config
