// ABOUTME: HTTP-level tests for the JSON-RPC endpoint covering both failure
// ABOUTME: domains: protocol errors (4xx/5xx) and application errors (200).

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/latticehq/lattice-gateway/internal/dispatch"
	"github.com/latticehq/lattice-gateway/internal/registry"
	"github.com/latticehq/lattice-gateway/internal/store"
)

// mockVerifier accepts exactly one token.
type mockVerifier struct {
	accept string
}

func (m *mockVerifier) Verify(token string) (string, error) {
	if token == m.accept {
		return "test-subject", nil
	}
	return "", fmt.Errorf("invalid token")
}

// mockAudit captures call records in memory.
type mockAudit struct {
	mu      sync.Mutex
	records []*store.CallRecord
}

func (m *mockAudit) RecordCall(ctx context.Context, rec *store.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *mockAudit) ListCalls(ctx context.Context, limit int) ([]*store.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, nil
}

func (m *mockAudit) Close() error { return nil }

// newTestDispatcher builds a dispatcher over a small fixed registry. Handlers
// echo their endpoint, except /v1/fail which always errors.
func newTestDispatcher(t *testing.T, writesDisabled bool) *dispatch.Dispatcher {
	t.Helper()

	defs := []registry.ServiceDefinition{
		{
			Name: "Catalog",
			Methods: []registry.MethodDefinition{
				{Name: "list", Description: "List items", Endpoint: "/v1/items", HTTPMethod: "GET", RequestType: "ListItemsRequest"},
				{Name: "create", Description: "Create an item", Write: true, Endpoint: "/v1/items", HTTPMethod: "POST"},
				{Name: "fail", Description: "Always fails", Endpoint: "/v1/fail", HTTPMethod: "GET"},
			},
		},
		{
			Name: "Users",
			Methods: []registry.MethodDefinition{
				{Name: "me", Description: "Current user", Endpoint: "/v1/me", HTTPMethod: "GET"},
			},
		},
	}
	types := []registry.TypeInfo{
		{Name: "ListItemsRequest", Fields: map[string]string{"owner_id": "Filter by owner"}},
	}

	factory := func(endpoint, httpMethod string) registry.Handler {
		return func(ctx context.Context, credential string, request map[string]any) (string, error) {
			if endpoint == "/v1/fail" {
				return "", fmt.Errorf("upstream returned 503: unavailable")
			}
			return fmt.Sprintf(`{"endpoint": "%s"}`, endpoint), nil
		}
	}

	reg, err := registry.New(defs, types, factory, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	d, err := dispatch.New(dispatch.Config{
		Registry:       reg,
		Credential:     "upstream-token",
		WritesDisabled: writesDisabled,
		Logger:         slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("building dispatcher: %v", err)
	}
	return d
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()

	if cfg.Dispatcher == nil {
		cfg.Dispatcher = newTestDispatcher(t, false)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// post sends a raw JSON body to /mcp and decodes the JSON-RPC envelope.
func post(t *testing.T, ts *httptest.Server, body string) (int, *JSONRPCResponse) {
	t.Helper()

	resp, err := http.Post(ts.URL+"/mcp", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	defer resp.Body.Close()

	var rpc JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode, &rpc
}

// callTool is a shorthand for a tools/call request with id 1.
func callTool(t *testing.T, ts *httptest.Server, tool string, arguments map[string]any) (int, *JSONRPCResponse) {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": arguments},
	})
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	return post(t, ts, string(body))
}

func TestInitialize(t *testing.T) {
	ts := newTestServer(t, Config{Version: "1.2.3"})

	status, rpc := post(t, ts, `{"jsonrpc": "2.0", "id": 1, "method": "initialize"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error != nil {
		t.Fatalf("unexpected error: %+v", rpc.Error)
	}

	result, ok := rpc.Result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want object", rpc.Result)
	}
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("protocolVersion = %v, want %s", result["protocolVersion"], protocolVersion)
	}
	serverInfo, _ := result["serverInfo"].(map[string]any)
	if serverInfo["name"] != "lattice-gateway" {
		t.Errorf("serverInfo.name = %v, want lattice-gateway", serverInfo["name"])
	}
	if serverInfo["version"] != "1.2.3" {
		t.Errorf("serverInfo.version = %v, want 1.2.3", serverInfo["version"])
	}
}

func TestToolsList(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := post(t, ts, `{"jsonrpc": "2.0", "id": 2, "method": "tools/list"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error != nil {
		t.Fatalf("unexpected error: %+v", rpc.Error)
	}

	result, _ := rpc.Result.(map[string]any)
	tools, _ := result["tools"].([]any)
	if len(tools) != 3 {
		t.Fatalf("got %d tools, want 3", len(tools))
	}

	names := make(map[string]bool)
	for _, raw := range tools {
		tool, _ := raw.(map[string]any)
		names[tool["name"].(string)] = true
		if tool["inputSchema"] == nil {
			t.Errorf("tool %v has no inputSchema", tool["name"])
		}
	}
	for _, want := range []string{"make_api_request", "get_type_info", "get_service_info"} {
		if !names[want] {
			t.Errorf("tool %s missing from catalogue", want)
		}
	}
}

func TestInvalidJSONRPCVersion(t *testing.T) {
	ts := newTestServer(t, Config{})

	// The version gate runs before method routing, so even a valid method
	// name is rejected.
	status, rpc := post(t, ts, `{"jsonrpc": "1.0", "id": 1, "method": "tools/list"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCInvalidRequest {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCInvalidRequest)
	}
}

func TestMissingJSONRPCVersion(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := post(t, ts, `{"id": 1, "method": "initialize"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCInvalidRequest {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCInvalidRequest)
	}
}

func TestUnknownRPCMethod(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := post(t, ts, `{"jsonrpc": "2.0", "id": 1, "method": "resources/list"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCMethodNotFound {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCMethodNotFound)
	}
}

func TestMalformedJSON(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := post(t, ts, `{not json`)
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCInternalError {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCInternalError)
	}
	if rpc.Error.Data == nil {
		t.Error("error.data should carry the parse failure message")
	}
}

func TestNonPostRejected(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/mcp")
	if err != nil {
		t.Fatalf("GET /mcp: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMakeAPIRequest(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := callTool(t, ts, "make_api_request", map[string]any{
		"service": "catalog",
		"method":  "list",
		"request": map[string]any{"owner_id": "u_1"},
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error != nil {
		t.Fatalf("unexpected error: %+v", rpc.Error)
	}

	result, _ := rpc.Result.(map[string]any)
	content, _ := result["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("got %d content blocks, want 1", len(content))
	}
	block, _ := content[0].(map[string]any)
	if block["type"] != "text" {
		t.Errorf("content type = %v, want text", block["type"])
	}
	if !strings.Contains(block["text"].(string), "/v1/items") {
		t.Errorf("content text = %v, want upstream echo", block["text"])
	}
}

func TestMakeAPIRequestWithoutBody(t *testing.T) {
	ts := newTestServer(t, Config{})

	// The request argument is optional; the handler still runs.
	status, rpc := callTool(t, ts, "make_api_request", map[string]any{
		"service": "users",
		"method":  "me",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error != nil {
		t.Fatalf("unexpected error: %+v", rpc.Error)
	}
}

func TestUnknownServiceIsApplicationError(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := callTool(t, ts, "make_api_request", map[string]any{
		"service": "warehouse",
		"method":  "list",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200: tool failures ride on HTTP success", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCApplicationError {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCApplicationError)
	}
	if !strings.Contains(rpc.Error.Message, "Invalid service warehouse") {
		t.Errorf("message = %q", rpc.Error.Message)
	}
	if !strings.Contains(rpc.Error.Message, "Available services: catalog, users") {
		t.Errorf("message = %q, want available service list", rpc.Error.Message)
	}
}

func TestUnknownMethodIsApplicationError(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := callTool(t, ts, "make_api_request", map[string]any{
		"service": "catalog",
		"method":  "bogus",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCApplicationError {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCApplicationError)
	}
	if !strings.Contains(rpc.Error.Message, "Invalid method bogus for service catalog") {
		t.Errorf("message = %q", rpc.Error.Message)
	}
}

func TestWriteBlockedIsApplicationError(t *testing.T) {
	ts := newTestServer(t, Config{Dispatcher: newTestDispatcher(t, true)})

	status, rpc := callTool(t, ts, "make_api_request", map[string]any{
		"service": "catalog",
		"method":  "create",
		"request": map[string]any{"name": "widget"},
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCApplicationError {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCApplicationError)
	}
	if !strings.Contains(rpc.Error.Message, "Write operations are not allowed") {
		t.Errorf("message = %q", rpc.Error.Message)
	}
	if !strings.Contains(rpc.Error.Message, "catalog.create") {
		t.Errorf("message = %q, want the blocked operation named", rpc.Error.Message)
	}
}

func TestHandlerFailureIsApplicationError(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := callTool(t, ts, "make_api_request", map[string]any{
		"service": "catalog",
		"method":  "fail",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCApplicationError {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCApplicationError)
	}
	if rpc.Error.Message != "upstream returned 503: unavailable" {
		t.Errorf("message = %q, want verbatim handler error", rpc.Error.Message)
	}
}

func TestUnknownTool(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := callTool(t, ts, "unknown_tool", map[string]any{})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCApplicationError {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCApplicationError)
	}
	if rpc.Error.Message != "Unknown tool: unknown_tool" {
		t.Errorf("message = %q", rpc.Error.Message)
	}
}

func TestGetTypeInfo(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := callTool(t, ts, "get_type_info", map[string]any{
		"service": "catalog",
		"method":  "list",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error != nil {
		t.Fatalf("unexpected error: %+v", rpc.Error)
	}

	result, _ := rpc.Result.(map[string]any)
	content, _ := result["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("got %d content blocks, want 1", len(content))
	}
	text := content[0].(map[string]any)["text"].(string)

	var info registry.TypeInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatalf("type info is not JSON: %v", err)
	}
	if info.Name != "ListItemsRequest" {
		t.Errorf("type name = %q, want ListItemsRequest", info.Name)
	}
	if info.Fields["owner_id"] != "Filter by owner" {
		t.Errorf("fields = %v", info.Fields)
	}
}

func TestGetTypeInfoMissing(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := callTool(t, ts, "get_type_info", map[string]any{
		"service": "users",
		"method":  "me",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCApplicationError {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCApplicationError)
	}
	if rpc.Error.Message != "No type information available for users.me" {
		t.Errorf("message = %q", rpc.Error.Message)
	}
}

func TestGetServiceInfo(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := callTool(t, ts, "get_service_info", map[string]any{
		"service": "catalog",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if rpc.Error != nil {
		t.Fatalf("unexpected error: %+v", rpc.Error)
	}

	result, _ := rpc.Result.(map[string]any)
	content, _ := result["content"].([]any)
	text := content[0].(map[string]any)["text"].(string)

	var methods map[string]string
	if err := json.Unmarshal([]byte(text), &methods); err != nil {
		t.Fatalf("service info is not JSON: %v", err)
	}
	if methods["list"] != "List items" {
		t.Errorf("methods = %v", methods)
	}
	if _, ok := methods["create"]; !ok {
		t.Error("create missing from service info")
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, Config{Verifier: &mockVerifier{accept: "good-token"}})

	body := `{"jsonrpc": "2.0", "id": 1, "method": "tools/list"}`

	// No token.
	resp, err := http.Post(ts.URL+"/mcp", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}

	// Wrong token.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/mcp", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer bad-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	// Valid token.
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/mcp", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer good-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, Config{})

	big := bytes.Repeat([]byte("a"), MaxRequestBodySize+1)
	status, rpc := post(t, ts, string(big))
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCInvalidRequest {
		t.Fatalf("error = %+v, want code %d", rpc.Error, JSONRPCInvalidRequest)
	}
}

func TestAuditRecording(t *testing.T) {
	audit := &mockAudit{}
	ts := newTestServer(t, Config{Audit: audit})

	callTool(t, ts, "make_api_request", map[string]any{"service": "catalog", "method": "list"})
	callTool(t, ts, "make_api_request", map[string]any{"service": "catalog", "method": "bogus"})

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.records) != 2 {
		t.Fatalf("got %d audit records, want 2", len(audit.records))
	}

	ok := audit.records[0]
	if !ok.OK || ok.Service != "catalog" || ok.Method != "list" || ok.Tool != "make_api_request" {
		t.Errorf("first record = %+v", ok)
	}
	failed := audit.records[1]
	if failed.OK || failed.Error == "" {
		t.Errorf("second record = %+v, want failure with message", failed)
	}
	if ok.RequestID == "" || failed.RequestID == "" {
		t.Error("audit records must carry request IDs")
	}
}

func TestResponseEchoesRequestID(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, rpc := post(t, ts, `{"jsonrpc": "2.0", "id": "abc-123", "method": "initialize"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if string(rpc.ID) != `"abc-123"` {
		t.Errorf("id = %s, want \"abc-123\"", rpc.ID)
	}
}
