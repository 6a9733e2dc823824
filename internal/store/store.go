// ABOUTME: Call audit record types and the store interface.
// ABOUTME: Records every tool invocation for operator debugging and accounting.

package store

import (
	"context"
	"time"
)

// CallRecord is one audited tool invocation.
type CallRecord struct {
	ID         string    // UUID v4
	RequestID  string    // correlation id generated per tools/call
	Tool       string    // MCP tool name (make_api_request, get_type_info, ...)
	Service    string    // raw service argument, may be empty for introspection tools
	Method     string    // raw method argument
	OK         bool      // whether the call produced a success outcome
	Error      string    // failure message, empty on success
	DurationMS int64     // wall-clock handling time
	CreatedAt  time.Time // set by the store if zero
}

// AuditStore persists call records. Implementations must be safe for
// concurrent use; auditing never fails a call, so callers log and continue
// on error.
type AuditStore interface {
	RecordCall(ctx context.Context, rec *CallRecord) error
	ListCalls(ctx context.Context, limit int) ([]*CallRecord, error)
	Close() error
}
