// Package mcp implements the gateway's JSON-RPC 2.0 endpoint.
//
// # Protocol
//
// A single POST endpoint accepts Model Context Protocol requests:
//
//	{"jsonrpc": "2.0", "method": "tools/call",
//	 "params": {"name": "make_api_request",
//	            "arguments": {"service": "tasks", "method": "list"}},
//	 "id": 1}
//
// Three RPC methods are supported: initialize (static capability
// descriptor), tools/list (fixed three-tool catalogue) and tools/call.
// The three tools map onto the dispatcher:
//
//   - make_api_request  execute a service method upstream
//   - get_type_info     request payload shape for a method
//   - get_service_info  method descriptions for a service
//
// # Error domains
//
// The HTTP status encodes which failure domain a caller is in:
//
//	HTTP 400  -32600/-32601  the JSON-RPC request itself was malformed
//	HTTP 200  -32000         the request was fine, the tool invocation failed
//	HTTP 500  -32603         an internal fault (bad JSON body, panic)
//
// Failures inside tools/call (unknown service or method, blocked write,
// upstream HTTP error) are protocol-valid responses describing a failed
// operation. They are always caught and converted, never propagated as
// transport errors.
//
// # Authentication
//
// When a token verifier is configured, requests need a bearer token:
//
//	Authorization: Bearer <token>
//
// Rejections happen at the transport level (HTTP 401) before any JSON-RPC
// processing.
package mcp
