// ABOUTME: The serve command: builds the engine with the SysML pack and runs the chosen transport
// ABOUTME: until a signal arrives or the transport ends on its own.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"

	"github.com/2389/sysml-mcp/internal/config"
	"github.com/2389/sysml-mcp/internal/logging"
	"github.com/2389/sysml-mcp/internal/mcp"
	"github.com/2389/sysml-mcp/internal/sysml"
	"github.com/2389/sysml-mcp/internal/toolclient"
	"github.com/2389/sysml-mcp/internal/transport"
)

func runServe(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags, err := parseServeFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// stdout carries protocol frames in stdio mode, so logs and banner use stderr.
	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}, stderr)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer func() { _ = closeLog.Close() }()

	if cfg.Transport.Kind != config.TransportStdio {
		printBanner(stderr, cfg, flags.configPath)
	}

	rest := toolclient.New(toolclient.Config{
		Timeout:   cfg.SysML.Timeout,
		CacheTTL:  cfg.SysML.CacheTTL,
		CacheSize: cfg.SysML.CacheSize,
		Headers:   cfg.SysML.Headers,
		Logger:    logger.With("component", "toolclient"),
	})
	defer rest.Close()

	pack := sysml.NewPack(sysml.NewClient(rest, cfg.SysML.URL))

	server, err := mcp.NewServer(mcp.Config{
		Name:    cfg.Server.Name,
		Version: serverVersion(cfg),
		Logger:  logger.With("component", "mcp"),
		Packs:   []mcp.ToolPack{pack},
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	pack.RegisterResources(server)

	tr := newTransport(cfg, stdin, stdout, logger)

	logger.Info("starting sysml-mcp",
		"version", serverVersion(cfg),
		"transport", cfg.Transport.Kind,
		"sysml_url", cfg.SysML.URL,
	)

	if err := tr.Start(ctx, server.HandleRequest); err != nil {
		logger.Error("FATAL ERROR - Server start failed", "error", err)
		return fmt.Errorf("starting transport: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case <-tr.Done():
		logger.Info("transport finished")
	}

	if err := tr.Stop(); err != nil && !errors.Is(err, transport.ErrNotRunning) {
		logger.Error("stopping transport", "error", err)
	}

	logger.Info("Server successfully stopped. Good bye!")
	return nil
}

func serverVersion(cfg *config.Config) string {
	if cfg.Server.Version != "" && cfg.Server.Version != "dev" {
		return cfg.Server.Version
	}
	return version
}

func newTransport(cfg *config.Config, stdin io.Reader, stdout io.Writer, logger *slog.Logger) transport.Transport {
	if cfg.Transport.Kind == config.TransportStdio {
		return transport.NewStdio(stdin, stdout, logger)
	}

	httpCfg := transport.HTTPConfig{
		Addr:              cfg.HTTP.Addr,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ServerName:        cfg.Server.Name,
		ServerVersion:     serverVersion(cfg),
		Logger:            logger,
	}
	if cfg.Tailscale.Enabled {
		httpCfg.Tailnet = &transport.TailnetConfig{
			Hostname:  cfg.Tailscale.Hostname,
			StateDir:  cfg.Tailscale.StateDir,
			AuthKey:   cfg.Tailscale.AuthKey,
			Ephemeral: cfg.Tailscale.Ephemeral,
			HTTPS:     cfg.Tailscale.HTTPS,
			Funnel:    cfg.Tailscale.Funnel,
		}
	}
	return transport.NewHTTP(httpCfg)
}

func printBanner(w io.Writer, cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	_, _ = cyan.Fprint(w, banner)
	_, _ = gray.Fprintf(w, "    version: %s\n\n", serverVersion(cfg))

	if configPath == "" {
		configPath = "(defaults)"
	}
	_, _ = green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Config:    %s\n", configPath)
	_, _ = green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "SysML API: %s\n", cfg.SysML.URL)
	_, _ = green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "HTTP:      %s\n", cfg.HTTP.Addr)

	if cfg.Tailscale.Enabled {
		_, _ = green.Fprint(w, "    ▶ ")
		fmt.Fprint(w, "Tailscale: ")
		_, _ = cyan.Fprint(w, cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			_, _ = yellow.Fprint(w, " [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			_, _ = gray.Fprint(w, " (ephemeral)")
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
}
