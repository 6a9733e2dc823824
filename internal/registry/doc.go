// Package registry holds the read-only mapping from upstream services to
// their method tables.
//
// # Overview
//
// The registry is the gateway's source of truth for what can be called: each
// service owns a table of methods, and each method carries a human-readable
// description, a write flag, a request-type reference for introspection, and
// the handler that performs the upstream call.
//
// The registry is built once at startup and never mutated. Callers supply
// lower-case service names on the wire; Canonical performs the single
// case-normalization step (first letter upper-cased) that maps them onto
// registry keys. There is no fuzzy matching and no case-insensitive fallback.
//
// # Declarative definitions
//
// Services are not hand-written modules. One ServiceDefinition record type is
// instantiated per service from static data: the builtin set in builtin.go,
// optionally extended or replaced by a YAML definitions file:
//
//	services:
//	  - name: Invoices
//	    methods:
//	      - name: list
//	        description: List invoices
//	        endpoint: /v1/invoices
//	        http_method: GET
//	      - name: create
//	        description: Create an invoice
//	        write: true
//	        request_type: InvoiceCreateRequest
//	        endpoint: /v1/invoices
//	        http_method: POST
//	types:
//	  - name: InvoiceCreateRequest
//	    fields:
//	      amount: "int, cents (required)"
//
// # Type information
//
// TypeInfo entries describe request shapes for the get_type_info tool. They
// are documentation for the calling agent only: dispatch never validates a
// request body against them.
package registry
