// ABOUTME: Entry point for sysml-mcp, an MCP server exposing a SysML v2 API as tools
// ABOUTME: Parses subcommands and flags, then wires config, logging, engine and transport

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2389/sysml-mcp/internal/config"
)

// Version is set at build time.
var version = "dev"

const banner = `
                      _                         
  ___ _   _ ___ _ __ | |      _ __ ___   ___ _ __  
 / __| | | / __| '_ \| |_____| '_ ' _ \ / __| '_ \ 
 \__ \ |_| \__ \ | | | |_____| | | | | | (__| |_) |
 |___/\__, |___/_| |_|_|     |_| |_| |_|\___| .__/ 
      |___/                                 |_|    
`

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sysml-mcp [command] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve     Start the MCP server (default)")
	fmt.Fprintln(w, "  health    Check the health endpoint of a running HTTP server")
	fmt.Fprintln(w, "  version   Print the version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'sysml-mcp <command> -h' for command flags.")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches to a subcommand. A leading flag or no arguments means serve.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(ctx, args, stdin, stdout, stderr)
	case "health":
		return runHealth(ctx, args, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "sysml-mcp %s\n", version)
		return nil
	case "help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// serveFlags holds the parsed serve command line.
type serveFlags struct {
	configPath string
	overrides  config.Overrides
}

func parseServeFlags(args []string, stderr io.Writer) (*serveFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f serveFlags
	fs.StringVar(&f.configPath, "config", "", "path to a YAML or TOML config file (default $"+config.EnvConfigPath+")")
	fs.StringVar(&f.overrides.Transport, "transport", "", "MCP transport: stdio or http")
	fs.StringVar(&f.overrides.Addr, "addr", "", "listen address for the HTTP transport")
	fs.StringVar(&f.overrides.URL, "url", "", "base URL of the SysML v2 REST API (default http://localhost:9000)")
	fs.StringVar(&f.overrides.URL, "u", "", "shorthand for --url")
	fs.StringVar(&f.overrides.LogLevel, "loglevel", "", "log level: INFO, WARN or ERROR (default ERROR)")
	fs.StringVar(&f.overrides.LogLevel, "l", "", "shorthand for --loglevel")
	fs.StringVar(&f.overrides.LogFile, "logfile", "", "write logs to this file instead of stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return &f, nil
}

func loadConfig(f *serveFlags) (*config.Config, error) {
	cfg, err := config.Resolve(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Apply(f.overrides)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func runHealth(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML or TOML config file")
	addr := fs.String("addr", "", "address of the running HTTP transport")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target := *addr
	if target == "" {
		cfg, err := config.Resolve(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		target = cfg.HTTP.Addr
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/health", target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Fprintln(stdout, "healthy")
	return nil
}
