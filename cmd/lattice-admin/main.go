// ABOUTME: Admin CLI for lattice-gateway, speaking JSON-RPC over HTTP.
// ABOUTME: Inspects the service catalogue and invokes tools from the terminal.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
)

const banner = `
 _       _   _   _                        _           _
| | __ _| |_| |_(_) ___ ___      __ _  __| |_ __ ___ (_)_ __
| |/ _' | __| __| |/ __/ _ \    / _' |/ _' | '_ ' _ \| | '_ \
| | (_| | |_| |_| | (_|  __/   | (_| | (_| | | | | | | | | | |
|_|\__,_|\__|\__|_|\___\___|    \__,_|\__,_|_| |_| |_|_|_| |_|
`

// profile is the admin CLI configuration, loaded from
// ~/.config/lattice/admin.toml and overridable via environment variables.
type profile struct {
	GatewayURL string `toml:"gateway_url"`
	Token      string `toml:"token"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	prof := loadProfile()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "health":
		err = cmdHealth(prof)
	case "services":
		err = cmdServices(prof)
	case "methods":
		err = cmdMethods(prof, args)
	case "type":
		err = cmdType(prof, args)
	case "call":
		err = cmdCall(prof, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: lattice-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  health                          Check gateway health")
	fmt.Println("  services                        List available services")
	fmt.Println("  methods <service>               List methods for a service")
	fmt.Println("  type <service> <method>         Show request type information")
	fmt.Println("  call <service> <method> [json]  Invoke a method with a JSON request body")
	fmt.Println()
	yellow.Println("Configuration:")
	fmt.Println("  ~/.config/lattice/admin.toml    gateway_url and token")
	fmt.Println("  LATTICE_GATEWAY_URL             Gateway base URL (default: http://localhost:8080)")
	fmt.Println("  LATTICE_TOKEN                   Bearer token, if the gateway requires auth")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  lattice-admin services")
	fmt.Println("  lattice-admin methods tasks")
	fmt.Println("  lattice-admin call tasks list '{\"project_id\": \"pr_123\"}'")
	fmt.Println()
}

// loadProfile reads the TOML profile, then applies environment overrides.
// A missing profile file is not an error; defaults apply.
func loadProfile() profile {
	prof := profile{GatewayURL: "http://localhost:8080"}

	if homeDir, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(homeDir, ".config", "lattice", "admin.toml")
		if _, err := toml.DecodeFile(path, &prof); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: ignoring malformed profile %s: %v\n", path, err)
		}
	}

	if url := os.Getenv("LATTICE_GATEWAY_URL"); url != "" {
		prof.GatewayURL = url
	}
	if token := os.Getenv("LATTICE_TOKEN"); token != "" {
		prof.Token = token
	}
	prof.GatewayURL = strings.TrimSuffix(prof.GatewayURL, "/")

	return prof
}

// rpcError mirrors the JSON-RPC error object returned by the gateway.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// callTool performs one tools/call request and returns the concatenated text
// content of the result.
func callTool(prof profile, tool string, arguments map[string]any) (string, error) {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      tool,
			"arguments": arguments,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, prof.GatewayURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if prof.Token != "" {
		req.Header.Set("Authorization", "Bearer "+prof.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var envelope struct {
		Result *struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *rpcError `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return "", fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return "", fmt.Errorf("%s (code %d)", envelope.Error.Message, envelope.Error.Code)
	}
	if envelope.Result == nil {
		return "", fmt.Errorf("empty response from gateway (status %d)", resp.StatusCode)
	}

	var texts []string
	for _, c := range envelope.Result.Content {
		if c.Type == "text" {
			texts = append(texts, c.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

func cmdHealth(prof profile) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prof.GatewayURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	color.Green("healthy")
	return nil
}

func cmdServices(prof profile) error {
	// Asking for a deliberately invalid service makes the gateway list the
	// valid ones in its error message.
	_, err := callTool(prof, "get_service_info", map[string]any{"service": "?"})
	if err == nil {
		return fmt.Errorf("expected service listing in error response")
	}

	msg := err.Error()
	marker := "Available services: "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return err
	}

	names := strings.Split(msg[idx+len(marker):], ", ")
	if i := strings.LastIndex(names[len(names)-1], " (code"); i >= 0 {
		names[len(names)-1] = names[len(names)-1][:i]
	}
	sort.Strings(names)

	yellow := color.New(color.FgYellow)
	yellow.Println("Services:")
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func cmdMethods(prof profile, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: lattice-admin methods <service>")
	}
	service := args[0]

	text, err := callTool(prof, "get_service_info", map[string]any{"service": service})
	if err != nil {
		return err
	}

	var methods map[string]string
	if err := json.Unmarshal([]byte(text), &methods); err != nil {
		// Not the expected shape, show it raw.
		fmt.Println(text)
		return nil
	}

	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tDESCRIPTION")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, methods[name])
	}
	return w.Flush()
}

func cmdType(prof profile, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lattice-admin type <service> <method>")
	}

	text, err := callTool(prof, "get_type_info", map[string]any{
		"service": args[0],
		"method":  args[1],
	})
	if err != nil {
		return err
	}

	fmt.Println(text)
	return nil
}

func cmdCall(prof profile, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lattice-admin call <service> <method> [json]")
	}

	request := map[string]any{}
	if len(args) > 2 {
		if err := json.Unmarshal([]byte(args[2]), &request); err != nil {
			return fmt.Errorf("parsing request body: %w", err)
		}
	}

	text, err := callTool(prof, "make_api_request", map[string]any{
		"service": args[0],
		"method":  args[1],
		"request": request,
	})
	if err != nil {
		return err
	}

	// Pretty-print when the upstream returned JSON.
	var pretty bytes.Buffer
	if json.Indent(&pretty, []byte(text), "", "  ") == nil {
		fmt.Println(pretty.String())
		return nil
	}
	fmt.Println(text)
	return nil
}
