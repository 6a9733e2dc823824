// Package dispatch is the method-dispatch core of the gateway.
//
// # Algorithm
//
// A dispatch takes the untyped (service, method, request) triple from the
// protocol adapter and:
//
//  1. Canonicalizes the service name (single first-letter transform).
//  2. Resolves the service; a miss lists every valid service name.
//  3. Resolves the method verbatim; a miss lists that service's methods.
//  4. Applies the write-policy gate before any handler work.
//  5. Invokes the handler with the process credential and the request
//     (nil becomes an empty map).
//  6. Wraps handler output as a single text content element, or wraps the
//     handler error verbatim as a HandlerFailure.
//
// Every dispatch produces exactly one success result or one *Error with a
// defined Kind, never both and never neither. The dispatcher adds no retries,
// timeouts, or idempotence of its own.
//
// # Introspection
//
// DescribeMethod and DescribeService share the resolution steps but never
// invoke a handler. Introspection and execution are deliberately decoupled:
// a request body is never checked against the declared request type before
// the handler runs.
package dispatch
