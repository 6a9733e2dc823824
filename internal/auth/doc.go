// Package auth verifies bearer tokens presented to the MCP endpoint.
//
// Two verifier implementations exist: HS256 JWTs (operator-issued, expiring)
// and static tokens checked against bcrypt hashes from config. MultiVerifier
// combines them; when no verifier is configured the endpoint runs open, which
// is the common deployment behind a tailnet.
//
// Authentication is a transport-level concern: a rejected token yields
// HTTP 401 before any JSON-RPC processing happens.
package auth
