// ABOUTME: Tests for the upstream client: path expansion, query encoding,
// ABOUTME: body handling and the handler's error mapping for HTTP statuses.

package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture records the last request the test server saw.
type capture struct {
	method string
	path   string
	query  string
	body   []byte
	auth   string
}

func newTestClient(t *testing.T, status int, response string) (*Client, *capture) {
	t.Helper()

	cap := &capture{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.method = r.Method
		cap.path = r.URL.Path
		cap.query = r.URL.RawQuery
		cap.auth = r.Header.Get("Authorization")
		cap.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(ts.Close)

	client, err := NewClient(Config{BaseURL: ts.URL, Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	return client, cap
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestInvokeGetEncodesQuery(t *testing.T) {
	client, cap := newTestClient(t, http.StatusOK, `{"tasks": []}`)

	status, raw, err := client.Invoke(context.Background(), "/v1/tasks", http.MethodGet, "tok", map[string]any{
		"project_id": "pr_1",
		"limit":      50,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"tasks": []}`, raw)

	assert.Equal(t, http.MethodGet, cap.method)
	assert.Equal(t, "/v1/tasks", cap.path)
	assert.Contains(t, cap.query, "project_id=pr_1")
	assert.Contains(t, cap.query, "limit=50")
	assert.Empty(t, cap.body)
	assert.Equal(t, "Bearer tok", cap.auth)
}

func TestInvokePostSendsJSONBody(t *testing.T) {
	client, cap := newTestClient(t, http.StatusCreated, `{"id": "ta_9"}`)

	status, _, err := client.Invoke(context.Background(), "/v1/tasks", http.MethodPost, "tok", map[string]any{
		"title": "write tests",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(cap.body, &sent))
	assert.Equal(t, "write tests", sent["title"])
	assert.Empty(t, cap.query)
}

func TestInvokeExpandsPathPlaceholders(t *testing.T) {
	client, cap := newTestClient(t, http.StatusOK, `{}`)

	_, _, err := client.Invoke(context.Background(), "/v1/tasks/{id}", http.MethodGet, "", map[string]any{
		"id":     "ta_42",
		"expand": "comments",
	})
	require.NoError(t, err)

	// The consumed placeholder key must not reappear as a query parameter.
	assert.Equal(t, "/v1/tasks/ta_42", cap.path)
	assert.Equal(t, "expand=comments", cap.query)
	assert.Empty(t, cap.auth)
}

func TestInvokeMissingPathParameter(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, `{}`)

	_, _, err := client.Invoke(context.Background(), "/v1/tasks/{id}", http.MethodGet, "", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing path parameter "id"`)
}

func TestInvokeReturnsErrorStatusesUndisturbed(t *testing.T) {
	client, _ := newTestClient(t, http.StatusNotFound, `{"error": "task not found"}`)

	status, raw, err := client.Invoke(context.Background(), "/v1/tasks/{id}", http.MethodGet, "", map[string]any{"id": "nope"})
	require.NoError(t, err, "HTTP error statuses are not transport errors")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, `{"error": "task not found"}`, raw)
}

func TestHandlerMapsErrorStatuses(t *testing.T) {
	client, _ := newTestClient(t, http.StatusForbidden, `{"error": "insufficient scope"}`)

	handler := client.Handler("/v1/webhooks", http.MethodPost)
	_, err := handler(context.Background(), "tok", map[string]any{"url": "https://example.com/hook"})
	require.Error(t, err)
	assert.Equal(t, `upstream returned 403: {"error": "insufficient scope"}`, err.Error())
}

func TestHandlerPassesSuccessBodyVerbatim(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, `  {"raw": true}  `)

	handler := client.Handler("/v1/me", http.MethodGet)
	text, err := handler(context.Background(), "tok", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, `  {"raw": true}  `, text, "response body is not reformatted")
}

func TestHandlerTransportError(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)

	handler := client.Handler("/v1/tasks", http.MethodGet)
	_, err = handler(context.Background(), "", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream request failed")
}

func TestEncodeQueryRepeatsSliceValues(t *testing.T) {
	query := encodeQuery(map[string]any{"status": []any{"open", "done"}})
	assert.Equal(t, "status=open&status=done", query)
}
