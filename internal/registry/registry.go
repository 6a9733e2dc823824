// ABOUTME: Read-only registry mapping upstream services to their method tables.
// ABOUTME: Built once at startup from declarative definitions, never mutated.

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Handler executes a method against the upstream API with the process-wide
// credential and the caller-supplied request payload. The returned string is
// the raw upstream response body.
type Handler func(ctx context.Context, credential string, request map[string]any) (string, error)

// HandlerFactory builds the handler for one (endpoint, httpMethod) pair.
// The upstream package supplies the real implementation; tests supply fakes.
type HandlerFactory func(endpoint, httpMethod string) Handler

// Method describes a single callable operation within a service.
type Method struct {
	Name        string
	Description string
	Write       bool   // mutating operation, subject to the write-policy gate
	RequestType string // key into the type-information table, introspection only
	Endpoint    string
	HTTPMethod  string
	Handler     Handler
}

// MethodTable maps method names (verbatim, no case folding) to descriptors.
type MethodTable map[string]*Method

// TypeInfo describes the request payload shape for one named type.
// It is never consulted at dispatch time.
type TypeInfo struct {
	Name   string            `yaml:"name" json:"name"`
	Fields map[string]string `yaml:"fields" json:"fields"`
}

// Registry is the immutable service/method mapping. Lookups are keyed by the
// canonical service name produced by Canonical.
type Registry struct {
	services map[string]MethodTable
	types    map[string]TypeInfo
	logger   *slog.Logger
}

// Canonical converts a caller-supplied service name to the registry's key
// convention: first rune upper-cased, the rest untouched. This is the single
// normalization step; internal casing is never rewritten.
func Canonical(name string) string {
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// New builds a registry from service and type definitions. Handlers are
// created through the factory, one per method. Duplicate service or method
// names are an error: the registry is static data and collisions mean the
// definitions are wrong.
func New(defs []ServiceDefinition, types []TypeInfo, factory HandlerFactory, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if factory == nil {
		return nil, fmt.Errorf("handler factory is required")
	}

	r := &Registry{
		services: make(map[string]MethodTable, len(defs)),
		types:    make(map[string]TypeInfo, len(types)),
		logger:   logger.With("component", "registry"),
	}

	for _, def := range defs {
		key := Canonical(def.Name)
		if key == "" {
			return nil, fmt.Errorf("service definition with empty name")
		}
		if _, exists := r.services[key]; exists {
			return nil, fmt.Errorf("duplicate service %q", key)
		}

		table := make(MethodTable, len(def.Methods))
		for _, m := range def.Methods {
			if m.Name == "" {
				return nil, fmt.Errorf("service %q: method with empty name", key)
			}
			if _, exists := table[m.Name]; exists {
				return nil, fmt.Errorf("service %q: duplicate method %q", key, m.Name)
			}
			table[m.Name] = &Method{
				Name:        m.Name,
				Description: m.Description,
				Write:       m.Write,
				RequestType: m.RequestType,
				Endpoint:    m.Endpoint,
				HTTPMethod:  strings.ToUpper(m.HTTPMethod),
				Handler:     factory(m.Endpoint, strings.ToUpper(m.HTTPMethod)),
			}
		}
		r.services[key] = table
	}

	for _, t := range types {
		if _, exists := r.types[t.Name]; exists {
			return nil, fmt.Errorf("duplicate type %q", t.Name)
		}
		r.types[t.Name] = t
	}

	r.logger.Info("registry built",
		"services", len(r.services),
		"types", len(r.types),
	)

	return r, nil
}

// Service returns the method table for a canonical service name.
func (r *Registry) Service(canonical string) (MethodTable, bool) {
	table, ok := r.services[canonical]
	return table, ok
}

// ServiceNames returns all canonical service names, sorted.
func (r *Registry) ServiceNames() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MethodNames returns the method names for one service, sorted.
// Returns nil if the service is unknown.
func (r *Registry) MethodNames(canonical string) []string {
	table, ok := r.services[canonical]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Type returns the type information for a request type name.
func (r *Registry) Type(name string) (TypeInfo, bool) {
	t, ok := r.types[name]
	return t, ok
}

// MethodCount returns the total number of registered methods (for logging).
func (r *Registry) MethodCount() int {
	n := 0
	for _, table := range r.services {
		n += len(table)
	}
	return n
}
