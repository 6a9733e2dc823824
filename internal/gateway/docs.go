// ABOUTME: Serves a human-readable catalogue of registered services at GET /docs.
// ABOUTME: Builds markdown from the registry and renders it with goldmark.

package gateway

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var docsRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Table),
)

// handleDocs renders the service catalogue. The page is regenerated per
// request; the registry is small and immutable so caching is not worth it.
func (g *Gateway) handleDocs(w http.ResponseWriter, r *http.Request) {
	md := g.catalogueMarkdown()

	var buf bytes.Buffer
	buf.WriteString(docsPageHeader)
	if err := docsRenderer.Convert([]byte(md), &buf); err != nil {
		g.logger.Error("rendering docs page", "error", err)
		http.Error(w, "failed to render documentation", http.StatusInternalServerError)
		return
	}
	buf.WriteString(docsPageFooter)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// catalogueMarkdown builds the markdown source for the docs page from the
// registry contents.
func (g *Gateway) catalogueMarkdown() string {
	var b strings.Builder
	b.WriteString("# Lattice Gateway\n\n")
	b.WriteString("JSON-RPC 2.0 endpoint at `POST /mcp`. ")
	b.WriteString("Call `make_api_request` with a service and method from the catalogue below.\n\n")

	for _, name := range g.registry.ServiceNames() {
		table, ok := g.registry.Service(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", name)
		b.WriteString("| Method | HTTP | Endpoint | Writes | Description |\n")
		b.WriteString("| --- | --- | --- | --- | --- |\n")
		for _, methodName := range g.registry.MethodNames(name) {
			m := table[methodName]
			writes := ""
			if m.Write {
				writes = "yes"
			}
			fmt.Fprintf(&b, "| `%s` | %s | `%s` | %s | %s |\n",
				m.Name, m.HTTPMethod, m.Endpoint, writes, m.Description)
		}
		b.WriteString("\n")
	}

	return b.String()
}

const docsPageHeader = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Lattice Gateway</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
th { background: #f4f4f4; }
code { background: #f4f4f4; padding: 0.1rem 0.3rem; border-radius: 3px; }
</style>
</head>
<body>
`

const docsPageFooter = `</body>
</html>
`
