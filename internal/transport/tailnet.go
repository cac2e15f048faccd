// ABOUTME: Tailscale (tsnet) listener so the HTTP transport can be reached only over a tailnet.
// ABOUTME: Supports plain HTTP on :80, HTTPS with Tailscale certificates, or public Funnel on :443.

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
)

// TailnetConfig configures the embedded tailscale node.
type TailnetConfig struct {
	Hostname  string
	StateDir  string
	AuthKey   string
	Ephemeral bool
	// HTTPS serves TLS on :443 using certificates provisioned by Tailscale.
	HTTPS bool
	// Funnel exposes :443 publicly through Tailscale Funnel. Takes precedence over HTTPS.
	Funnel bool
}

// ListenTailnet starts a tsnet node and returns a listener on it plus a closer for the node.
func ListenTailnet(ctx context.Context, cfg TailnetConfig, logger *slog.Logger) (net.Listener, io.Closer, error) {
	stateDir, err := resolveTailscaleStateDir(cfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(cfg.AuthKey)
	if err != nil {
		return nil, nil, err
	}

	srv := &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       stateDir,
		Ephemeral: cfg.Ephemeral,
		AuthKey:   authKey,
	}

	logger.Info("starting tailscale node", "hostname", cfg.Hostname, "state_dir", stateDir, "ephemeral", cfg.Ephemeral)
	status, err := srv.Up(ctx)
	if err != nil {
		_ = srv.Close()
		return nil, nil, fmt.Errorf("starting tailscale: %w", err)
	}
	logTailscaleStatus(logger, cfg.Hostname, status)

	ln, err := tailnetListener(srv, cfg, logger)
	if err != nil {
		_ = srv.Close()
		return nil, nil, err
	}
	return ln, srv, nil
}

func tailnetListener(srv *tsnet.Server, cfg TailnetConfig, logger *slog.Logger) (net.Listener, error) {
	switch {
	case cfg.Funnel:
		logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := srv.ListenFunnel("tcp", ":443")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case cfg.HTTPS:
		logger.Info("enabling HTTPS with Tailscale certs on :443")
		ln, err := srv.Listen("tcp", ":443")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
		}
		lc, err := srv.LocalClient()
		if err != nil {
			_ = ln.Close()
			return nil, fmt.Errorf("getting tailscale local client: %w", err)
		}
		return tls.NewListener(ln, &tls.Config{
			GetCertificate: lc.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}), nil
	default:
		ln, err := srv.Listen("tcp", ":80")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "sysml-mcp", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

func logTailscaleStatus(logger *slog.Logger, hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}
