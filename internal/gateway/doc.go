// Package gateway assembles the full lattice-gateway process: it builds the
// registry, dispatcher, audit store and MCP server from configuration, wires
// them onto a single HTTP mux and manages the listener lifecycle.
//
// The gateway serves three routes:
//
//   - POST /mcp    JSON-RPC 2.0 MCP endpoint
//   - GET  /health liveness probe, independent of upstream availability
//   - GET  /docs   HTML catalogue of registered services and methods
//
// Listeners are either a plain TCP socket (server.http_addr) or a Tailscale
// tsnet node (tailscale.enabled), optionally exposed publicly via Funnel.
// Run blocks until the context is canceled, then performs a graceful
// shutdown with a five second deadline.
package gateway
