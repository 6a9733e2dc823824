// ABOUTME: Wires registry, dispatcher, store and MCP server into one HTTP process.
// ABOUTME: Manages TCP or Tailscale listeners, health endpoint and graceful shutdown.

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/latticehq/lattice-gateway/internal/auth"
	"github.com/latticehq/lattice-gateway/internal/config"
	"github.com/latticehq/lattice-gateway/internal/dispatch"
	"github.com/latticehq/lattice-gateway/internal/mcp"
	"github.com/latticehq/lattice-gateway/internal/registry"
	"github.com/latticehq/lattice-gateway/internal/store"
	"github.com/latticehq/lattice-gateway/internal/upstream"
)

// Gateway is the running lattice-gateway process.
type Gateway struct {
	config      *config.Config
	logger      *slog.Logger
	registry    *registry.Registry
	dispatcher  *dispatch.Dispatcher
	audit       store.AuditStore
	httpServer  *http.Server
	tsnetServer *tsnet.Server
}

// New constructs a gateway from configuration. The registry, dispatcher and
// MCP server are built here, once; nothing is reloaded at runtime.
func New(cfg *config.Config, version string, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating upstream client: %w", err)
	}

	defs := registry.BuiltinDefinitions()
	types := registry.BuiltinTypes()
	if cfg.Registry.Definitions != "" {
		file, err := registry.LoadDefinitions(cfg.Registry.Definitions)
		if err != nil {
			return nil, fmt.Errorf("loading service definitions: %w", err)
		}
		defs = registry.MergeDefinitions(defs, file.Services)
		types = append(types, file.Types...)
		logger.Info("loaded service definitions",
			"path", cfg.Registry.Definitions,
			"services", len(file.Services),
			"types", len(file.Types),
		)
	}

	factory := func(endpoint, httpMethod string) registry.Handler {
		return client.Handler(endpoint, httpMethod)
	}
	reg, err := registry.New(defs, types, factory, logger)
	if err != nil {
		return nil, fmt.Errorf("building registry: %w", err)
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Registry:       reg,
		Credential:     cfg.Upstream.Token,
		WritesDisabled: cfg.Policy.DisableWrites,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	if cfg.Policy.DisableWrites {
		logger.Info("write operations disabled by policy")
	}

	var audit store.AuditStore
	if cfg.Database.Path != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		audit = sqlStore
	}

	verifier := buildVerifier(cfg.Auth, logger)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Dispatcher: dispatcher,
		Logger:     logger,
		Verifier:   verifier,
		Audit:      audit,
		Version:    version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw := &Gateway{
		config:     cfg,
		logger:     logger.With("component", "gateway"),
		registry:   reg,
		dispatcher: dispatcher,
		audit:      audit,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /docs", gw.handleDocs)
	mcpServer.RegisterRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("gateway constructed",
		"services", len(reg.ServiceNames()),
		"methods", reg.MethodCount(),
		"auth", verifier != nil,
		"audit", audit != nil,
	)

	return gw, nil
}

// buildVerifier assembles the token verifier from config, or nil when
// authentication is not configured.
func buildVerifier(cfg config.AuthConfig, logger *slog.Logger) auth.TokenVerifier {
	var verifiers []auth.TokenVerifier
	if cfg.JWTSecret != "" {
		verifiers = append(verifiers, auth.NewJWTVerifier([]byte(cfg.JWTSecret)))
	}
	if len(cfg.TokenHashes) > 0 {
		verifiers = append(verifiers, auth.NewStaticVerifier(cfg.TokenHashes))
	}
	multi := auth.NewMultiVerifier(verifiers...)
	if multi == nil {
		logger.Warn("MCP endpoint running without authentication")
		return nil
	}
	return multi
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	listener, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", listener.Addr().String())
		if err := g.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, tailscale node and audit store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	if g.audit != nil {
		if err := g.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupTailscaleListener creates a tsnet server and returns its listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.Funnel {
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	}

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
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
	return filepath.Join(homeDir, ".local", "share", "lattice-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", fmt.Errorf("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// handleHealth reports liveness. It has no dependency on the registry,
// dispatcher or store, so it answers even when the upstream is down.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "lattice-gateway",
	})
}
