// ABOUTME: HTTP client for the upstream REST API fronted by the gateway.
// ABOUTME: One generic invoke covers every (endpoint, method) pair in the registry.

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single upstream call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client performs calls against the upstream REST API. It is safe for
// concurrent use; the gateway shares one instance across all requests.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Config contains configuration options for the Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewClient creates an upstream client for the given base URL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "upstream"),
	}, nil
}

// Invoke performs one upstream call and returns the HTTP status and raw
// response body. GET and DELETE encode the request map as query parameters;
// other methods send it as a JSON body. {name} placeholders in the endpoint
// are filled from the request map and the consumed keys are not re-sent.
// Invoke itself only fails on transport errors; HTTP error statuses are
// returned to the caller undisturbed.
func (c *Client) Invoke(ctx context.Context, endpoint, httpMethod, token string, request map[string]any) (int, string, error) {
	path, remaining, err := expandPath(endpoint, request)
	if err != nil {
		return 0, "", err
	}

	var body io.Reader
	fullURL := c.baseURL + path

	switch httpMethod {
	case http.MethodGet, http.MethodDelete:
		if query := encodeQuery(remaining); query != "" {
			fullURL += "?" + query
		}
	default:
		payload, err := json.Marshal(remaining)
		if err != nil {
			return 0, "", fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, fullURL, body)
	if err != nil {
		return 0, "", fmt.Errorf("building upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("reading upstream response: %w", err)
	}

	c.logger.Debug("upstream call",
		"method", httpMethod,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return resp.StatusCode, string(raw), nil
}

// Handler builds the registry handler for one (endpoint, httpMethod) pair.
// Upstream statuses >= 400 become errors carrying the status and raw body so
// the dispatcher surfaces the upstream's own error text verbatim.
func (c *Client) Handler(endpoint, httpMethod string) func(ctx context.Context, credential string, request map[string]any) (string, error) {
	return func(ctx context.Context, credential string, request map[string]any) (string, error) {
		status, raw, err := c.Invoke(ctx, endpoint, httpMethod, credential, request)
		if err != nil {
			return "", err
		}
		if status >= 400 {
			return "", fmt.Errorf("upstream returned %d: %s", status, raw)
		}
		return raw, nil
	}
}

// expandPath substitutes {name} placeholders in the endpoint with values from
// the request map. Consumed keys are removed from the returned map so they do
// not appear again in the query string or body.
func expandPath(endpoint string, request map[string]any) (string, map[string]any, error) {
	remaining := make(map[string]any, len(request))
	for k, v := range request {
		remaining[k] = v
	}

	var sb strings.Builder
	rest := endpoint
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			sb.WriteString(rest)
			break
		}
		closing := strings.Index(rest[open:], "}")
		if closing < 0 {
			return "", nil, fmt.Errorf("unterminated placeholder in endpoint %q", endpoint)
		}
		name := rest[open+1 : open+closing]
		value, ok := remaining[name]
		if !ok {
			return "", nil, fmt.Errorf("request is missing path parameter %q", name)
		}
		sb.WriteString(rest[:open])
		sb.WriteString(url.PathEscape(fmt.Sprintf("%v", value)))
		delete(remaining, name)
		rest = rest[open+closing+1:]
	}

	return sb.String(), remaining, nil
}

// encodeQuery flattens a request map into URL query parameters.
func encodeQuery(request map[string]any) string {
	if len(request) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range request {
		switch vv := v.(type) {
		case []any:
			for _, item := range vv {
				values.Add(k, fmt.Sprintf("%v", item))
			}
		default:
			values.Set(k, fmt.Sprintf("%v", v))
		}
	}
	return values.Encode()
}
