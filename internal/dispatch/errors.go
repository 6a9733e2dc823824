// ABOUTME: Typed dispatch failures mapped onto JSON-RPC application errors.
// ABOUTME: Every failure kind carries a caller-facing message listing alternatives.

package dispatch

// Kind classifies a dispatch failure. The protocol adapter maps every kind
// onto JSON-RPC code -32000; tests assert on kinds directly.
type Kind int

const (
	// KindUnknownService means the service name resolved to nothing.
	KindUnknownService Kind = iota + 1
	// KindUnknownMethod means the service exists but the method does not.
	KindUnknownMethod
	// KindWriteDisallowed means a write method was blocked by policy.
	KindWriteDisallowed
	// KindTypeInfoMissing means a method has no request type registered.
	KindTypeInfoMissing
	// KindHandlerFailure means the upstream handler returned an error.
	KindHandlerFailure
)

// String returns a stable name for logging.
func (k Kind) String() string {
	switch k {
	case KindUnknownService:
		return "unknown_service"
	case KindUnknownMethod:
		return "unknown_method"
	case KindWriteDisallowed:
		return "write_disallowed"
	case KindTypeInfoMissing:
		return "type_info_missing"
	case KindHandlerFailure:
		return "handler_failure"
	default:
		return "unknown"
	}
}

// Error is a dispatch failure with a message meant for the calling agent.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// AsError returns the *Error if err is one, else nil.
func AsError(err error) *Error {
	if de, ok := err.(*Error); ok {
		return de
	}
	return nil
}
