// Package upstream talks to the third-party REST API the gateway fronts.
//
// The upstream is a black box with the capability
//
//	invoke(endpoint, httpMethod, token, body) -> (statusCode, rawText)
//
// exposed here as Client.Invoke. Client.Handler adapts one
// (endpoint, httpMethod) pair into a registry handler, so every registered
// method shares a single generic implementation instead of per-service code.
//
// The client adds no retries, backoff, or response parsing: the raw body is
// passed back to the calling agent as-is, and HTTP error statuses are turned
// into errors carrying the upstream's own error text.
package upstream
