// ABOUTME: MCP-compatible JSON-RPC 2.0 HTTP endpoint for external agents.
// ABOUTME: Routes initialize, tools/list and tools/call onto the dispatcher.

package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/latticehq/lattice-gateway/internal/auth"
	"github.com/latticehq/lattice-gateway/internal/dispatch"
	"github.com/latticehq/lattice-gateway/internal/store"
)

// protocolVersion is the MCP protocol version advertised in initialize responses.
const protocolVersion = "2024-11-05"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC error codes used by the gateway. Application errors (-32000) ride
// on HTTP 200: the transport succeeded, the operation did not. Protocol
// malformation uses 400 and internal faults 500, so callers can separate the
// two failure domains by HTTP status alone.
const (
	JSONRPCInvalidRequest   = -32600
	JSONRPCMethodNotFound   = -32601
	JSONRPCInternalError    = -32603
	JSONRPCApplicationError = -32000
)

// ToolInfo represents an MCP tool definition.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Config holds configuration for the MCP server.
type Config struct {
	Dispatcher *dispatch.Dispatcher
	Logger     *slog.Logger
	Verifier   auth.TokenVerifier // nil disables authentication
	Audit      store.AuditStore   // nil disables call auditing
	Version    string             // reported in initialize
}

// Server implements the MCP JSON-RPC endpoint. Each request is a short-lived
// stateless transaction; the server holds no per-request state past the
// response write.
type Server struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	verifier   auth.TokenVerifier
	audit      store.AuditStore
	version    string
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		dispatcher: cfg.Dispatcher,
		logger:     logger.With("component", "mcp"),
		verifier:   cfg.Verifier,
		audit:      cfg.Audit,
		version:    version,
	}, nil
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
}

// handleMCP is the single MCP endpoint. Only POST carries JSON-RPC traffic.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handlePost(w, r)
}

// handlePost processes one JSON-RPC message. A panic anywhere below is
// converted to -32603 so no request ever escapes without a response.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic handling MCP request", "panic", rec)
			s.writeError(w, http.StatusInternalServerError, nil, JSONRPCInternalError, "Internal error", fmt.Sprintf("%v", rec))
		}
	}()

	if s.verifier != nil {
		if err := s.authenticate(r); err != nil {
			s.logger.Warn("rejected unauthenticated MCP request", "error", err)
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, nil, JSONRPCInternalError, "Internal error", "failed to read request body")
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.writeError(w, http.StatusBadRequest, nil, JSONRPCInvalidRequest, "Invalid Request", "request body too large")
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		// Unparseable bodies are a defect outside the tools/call boundary.
		s.writeError(w, http.StatusInternalServerError, nil, JSONRPCInternalError, "Internal error", err.Error())
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeError(w, http.StatusBadRequest, req.ID, JSONRPCInvalidRequest, "Invalid Request", nil)
		return
	}

	s.logger.Debug("MCP request", "method", req.Method)

	switch req.Method {
	case "initialize":
		s.handleInitialize(w, req)
	case "tools/list":
		s.handleToolsList(w, req)
	case "tools/call":
		s.handleToolsCall(w, r, req)
	default:
		s.writeError(w, http.StatusBadRequest, req.ID, JSONRPCMethodNotFound, "Method not found", nil)
	}
}

// authenticate checks the Authorization header against the verifier.
func (s *Server) authenticate(r *http.Request) error {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return fmt.Errorf("missing authorization")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || token == "" {
		return fmt.Errorf("invalid authorization header format")
	}
	_, err := s.verifier.Verify(token)
	return err
}

// handleInitialize returns the static capability descriptor. It depends on
// neither the registry nor the credential.
func (s *Server) handleInitialize(w http.ResponseWriter, req JSONRPCRequest) {
	result := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "lattice-gateway",
			"version": s.version,
		},
	}
	s.writeResult(w, req.ID, result)
}

// handleToolsList returns the fixed three-tool catalogue.
func (s *Server) handleToolsList(w http.ResponseWriter, req JSONRPCRequest) {
	s.writeResult(w, req.ID, ListToolsResult{Tools: toolCatalogue()})
}

// toolCatalogue is the static tool set exposed to calling agents.
func toolCatalogue() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "make_api_request",
			Description: "Execute a method of an upstream API service and return its raw response",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"service":{"type":"string","description":"Service name, e.g. tasks"},"method":{"type":"string","description":"Method name, e.g. list"},"request":{"type":"object","description":"Request payload passed to the upstream method"}},"required":["service","method"]}`),
		},
		{
			Name:        "get_type_info",
			Description: "Describe the request payload shape of a service method",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"service":{"type":"string"},"method":{"type":"string"}},"required":["service","method"]}`),
		},
		{
			Name:        "get_service_info",
			Description: "List the methods of a service with their descriptions",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"service":{"type":"string"}},"required":["service"]}`),
		},
	}
}

// handleToolsCall routes a tool call. Every failure inside this boundary
// (unknown tool, unknown service or method, policy block, upstream error) is
// reported as a JSON-RPC application error with HTTP 200, never as a
// transport error.
func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.writeError(w, http.StatusOK, req.ID, JSONRPCApplicationError, fmt.Sprintf("Invalid tool call params: %v", err), nil)
			return
		}
	}

	requestID := uuid.New().String()
	start := time.Now()

	service, _ := params.Arguments["service"].(string)
	method, _ := params.Arguments["method"].(string)

	s.logger.Debug("tools/call",
		"tool", params.Name,
		"service", service,
		"method", method,
		"request_id", requestID,
	)

	var result any
	var callErr error

	switch params.Name {
	case "make_api_request":
		request, _ := params.Arguments["request"].(map[string]any)
		result, callErr = s.dispatcher.Dispatch(r.Context(), service, method, request)
	case "get_type_info":
		result, callErr = s.describeMethod(service, method)
	case "get_service_info":
		result, callErr = s.describeService(service)
	default:
		callErr = fmt.Errorf("Unknown tool: %s", params.Name)
	}

	s.recordCall(r, &store.CallRecord{
		RequestID:  requestID,
		Tool:       params.Name,
		Service:    service,
		Method:     method,
		OK:         callErr == nil,
		Error:      errMessage(callErr),
		DurationMS: time.Since(start).Milliseconds(),
	})

	if callErr != nil {
		s.logger.Warn("tool call failed",
			"tool", params.Name,
			"request_id", requestID,
			"error", callErr,
		)
		s.writeError(w, http.StatusOK, req.ID, JSONRPCApplicationError, callErr.Error(), nil)
		return
	}

	s.logger.Debug("tools/call complete", "tool", params.Name, "request_id", requestID)
	s.writeResult(w, req.ID, result)
}

// describeMethod wraps type information as tool content.
func (s *Server) describeMethod(service, method string) (*dispatch.Result, error) {
	info, err := s.dispatcher.DescribeMethod(service, method)
	if err != nil {
		return nil, err
	}
	text, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	return &dispatch.Result{Content: []dispatch.Content{{Type: "text", Text: string(text)}}}, nil
}

// describeService wraps the method-description projection as tool content.
func (s *Server) describeService(service string) (*dispatch.Result, error) {
	methods, err := s.dispatcher.DescribeService(service)
	if err != nil {
		return nil, err
	}
	text, err := json.MarshalIndent(methods, "", "  ")
	if err != nil {
		return nil, err
	}
	return &dispatch.Result{Content: []dispatch.Content{{Type: "text", Text: string(text)}}}, nil
}

// recordCall writes an audit record if a store is configured. Audit failures
// are logged and swallowed; they never change the RPC outcome.
func (s *Server) recordCall(r *http.Request, rec *store.CallRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordCall(r.Context(), rec); err != nil {
		s.logger.Warn("failed to record call audit", "request_id", rec.RequestID, "error", err)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// writeResult sends a successful JSON-RPC response.
func (s *Server) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// writeError sends a JSON-RPC error response with the given HTTP status.
func (s *Server) writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}
