// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleConfigResource handles requests for the configuration template resource.
// It provides a JSON template showing the expected configuration structure for the MCP server.
//
// Parameters:
//   - ctx: Context for cancellation and timeout handling
//   - request: MCP resource read request for the config template
//
// Returns:
//   - A slice containing the configuration template as JSON content
//   - An error if JSON marshaling fails
//
// Every value is the built-in default; the API key is left as a placeholder.
func handleConfigResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	example := defaultConfig()
	example.Upstream.APIKey = "<optional SSLMate API key>"

	jsonData, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config template: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uriConfigTemplate,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleVersionResource handles requests for version information resource.
//
// Parameters:
//   - ctx: Context for cancellation and timeout handling
//   - request: MCP resource read request for version information
//
// Returns:
//   - A slice containing version and capability information as JSON content
//   - An error if JSON marshaling fails
//
// The capabilities are those of the built server, so the listing never drifts
// from what clients can actually call.
func (c *catalog) handleVersionResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	versionInfo := map[string]any{
		"name":    c.name,
		"version": c.version,
		"type":    "MCP Server",
		"capabilities": map[string]any{
			"tools":     c.tools,
			"resources": c.resources,
			"prompts":   c.prompts,
		},
		"upstream": "SSLMate Certificate Transparency Search API",
	}

	jsonData, err := json.MarshalIndent(versionInfo, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal version info: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uriVersion,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// searchResource serves sslmate://search/{domain}.
type searchResource struct {
	dispatcher *Dispatcher
	limit      int
}

// handle runs search_certificates for the domain in the URI with default flags.
// A failed search is returned as an error so the client sees a protocol error
// rather than an empty resource.
func (r *searchResource) handle(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	domain, err := domainFromSearchURI(request.Params.URI)
	if err != nil {
		return nil, err
	}

	result := r.dispatcher.Invoke(ctx, toolSearchCertificates, map[string]any{
		argDomain: domain,
		argLimit:  r.limit,
	})
	if result.IsError() {
		return nil, result.Error
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     result.Text(),
		},
	}, nil
}

// domainFromSearchURI extracts the unescaped domain from sslmate://search/{domain}.
func domainFromSearchURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, searchURIPrefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("invalid search resource URI %q (expected %s)", uri, uriSearchTemplate)
	}
	domain, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("invalid search resource URI %q: %w", uri, err)
	}
	return domain, nil
}
