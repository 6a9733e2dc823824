// ABOUTME: Resolves (service, method) against the registry, enforces the write
// ABOUTME: policy, invokes handlers and normalizes every outcome.

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/latticehq/lattice-gateway/internal/registry"
)

// Content is one element of a successful dispatch result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result wraps a handler's output as MCP tool content.
type Result struct {
	Content []Content `json:"content"`
}

// Dispatcher resolves tool calls against the registry. The upstream
// credential and the write-policy flag are captured at construction from the
// immutable process configuration; nothing is read from the environment at
// dispatch time.
type Dispatcher struct {
	registry       *registry.Registry
	credential     string
	writesDisabled bool
	logger         *slog.Logger
}

// Config contains configuration options for the Dispatcher.
type Config struct {
	Registry       *registry.Registry
	Credential     string
	WritesDisabled bool
	Logger         *slog.Logger
}

// New creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:       cfg.Registry,
		credential:     cfg.Credential,
		writesDisabled: cfg.WritesDisabled,
		logger:         logger.With("component", "dispatch"),
	}, nil
}

// Dispatch executes one (service, method) call. Exactly one of result or
// error is returned; every error is a *Error with a defined kind. A nil
// request is treated as an empty map. The request body is deliberately not
// validated against the method's declared type before invocation.
func (d *Dispatcher) Dispatch(ctx context.Context, serviceRaw, methodRaw string, request map[string]any) (*Result, error) {
	method, derr := d.resolve(serviceRaw, methodRaw)
	if derr != nil {
		return nil, derr
	}

	if method.Write && d.writesDisabled {
		d.logger.Warn("write operation blocked by policy",
			"service", serviceRaw,
			"method", methodRaw,
		)
		return nil, &Error{
			Kind: KindWriteDisallowed,
			Message: fmt.Sprintf("Write operations are not allowed. Attempted write operation: %s.%s",
				strings.ToLower(registry.Canonical(serviceRaw)), methodRaw),
		}
	}

	if request == nil {
		request = map[string]any{}
	}

	start := time.Now()
	text, err := method.Handler(ctx, d.credential, request)
	if err != nil {
		d.logger.Warn("handler failed",
			"service", serviceRaw,
			"method", methodRaw,
			"error", err,
		)
		return nil, &Error{Kind: KindHandlerFailure, Message: err.Error()}
	}

	d.logger.Debug("dispatch complete",
		"service", serviceRaw,
		"method", methodRaw,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{Content: []Content{{Type: "text", Text: text}}}, nil
}

// DescribeMethod resolves a method and returns its request type information.
// It never invokes the handler. A method with no registered type information
// fails with KindTypeInfoMissing.
func (d *Dispatcher) DescribeMethod(serviceRaw, methodRaw string) (registry.TypeInfo, error) {
	method, derr := d.resolve(serviceRaw, methodRaw)
	if derr != nil {
		return registry.TypeInfo{}, derr
	}

	if method.RequestType == "" {
		return registry.TypeInfo{}, &Error{
			Kind:    KindTypeInfoMissing,
			Message: fmt.Sprintf("No type information available for %s.%s", strings.ToLower(registry.Canonical(serviceRaw)), methodRaw),
		}
	}
	info, ok := d.registry.Type(method.RequestType)
	if !ok {
		return registry.TypeInfo{}, &Error{
			Kind:    KindTypeInfoMissing,
			Message: fmt.Sprintf("No type information available for %s.%s", strings.ToLower(registry.Canonical(serviceRaw)), methodRaw),
		}
	}
	return info, nil
}

// DescribeService resolves a service and returns a projection of its method
// table: method name to description only. Handlers and write flags are
// deliberately omitted from the response.
func (d *Dispatcher) DescribeService(serviceRaw string) (map[string]string, error) {
	table, derr := d.resolveService(serviceRaw)
	if derr != nil {
		return nil, derr
	}

	methods := make(map[string]string, len(table))
	for name, m := range table {
		methods[name] = m.Description
	}
	return methods, nil
}

// resolveService performs steps 1 and 2 of the dispatch algorithm: canonicalize
// and look up the service, failing with the full candidate list.
func (d *Dispatcher) resolveService(serviceRaw string) (registry.MethodTable, *Error) {
	canonical := registry.Canonical(serviceRaw)
	table, ok := d.registry.Service(canonical)
	if !ok {
		return nil, &Error{
			Kind: KindUnknownService,
			Message: fmt.Sprintf("Invalid service %s. Available services: %s",
				serviceRaw, strings.Join(d.lowerServiceNames(), ", ")),
		}
	}
	return table, nil
}

// resolve performs steps 1 through 3: service resolution plus a verbatim method
// lookup (no case transform on the method name).
func (d *Dispatcher) resolve(serviceRaw, methodRaw string) (*registry.Method, *Error) {
	table, derr := d.resolveService(serviceRaw)
	if derr != nil {
		return nil, derr
	}

	method, ok := table[methodRaw]
	if !ok {
		return nil, &Error{
			Kind: KindUnknownMethod,
			Message: fmt.Sprintf("Invalid method %s for service %s. Available methods: %s",
				methodRaw, strings.ToLower(registry.Canonical(serviceRaw)),
				strings.Join(d.registry.MethodNames(registry.Canonical(serviceRaw)), ", ")),
		}
	}
	return method, nil
}

// lowerServiceNames returns the registry's key set, lower-cased and sorted.
func (d *Dispatcher) lowerServiceNames() []string {
	canonical := d.registry.ServiceNames()
	names := make([]string, len(canonical))
	for i, name := range canonical {
		names[i] = strings.ToLower(name)
	}
	return names
}
