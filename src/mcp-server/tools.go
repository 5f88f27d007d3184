// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/ctsearch"
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names.
const (
	toolSearchCertificates    = "search_certificates"
	toolGetCertificateDetails = "get_certificate_details"
)

// Tool argument names.
const (
	argDomain            = "domain"
	argIncludeSubdomains = "include_subdomains"
	argIncludeExpired    = "include_expired"
	argLimit             = "limit"
	argCertID            = "cert_id"
)

// CertificateSearcher is the upstream dependency of the certificate tools.
// [ctsearch.Client] is the production implementation.
type CertificateSearcher interface {
	Search(ctx context.Context, req ctsearch.SearchRequest) (*ctsearch.SearchResult, error)
	Certificate(ctx context.Context, id string) (*ctsearch.CertificateRecord, error)
}

// createTools creates and returns all MCP tool definitions backed by searcher.
//
// Parameters:
//   - searcher: Upstream client used by every tool operation
//
// Returns:
//   - A slice of ToolDefinition, one per registered tool
//
// The function defines the following tools:
//   - search_certificates: Lists certificates issued for a domain from certificate transparency logs
//   - get_certificate_details: Fetches a single certificate by its SSLMate identifier
//
// Each tool includes proper parameter definitions, descriptions, and default values
// as required by the MCP specification. The declared input schema is also what the
// [Dispatcher] validates arguments against.
func createTools(searcher CertificateSearcher) []ToolDefinition {
	return []ToolDefinition{
		{
			Tool: mcp.NewTool(toolSearchCertificates,
				mcp.WithDescription("Search certificate transparency logs through SSLMate for certificates issued to a domain"),
				mcp.WithString(argDomain,
					mcp.Required(),
					mcp.Description("Bare hostname to search for, e.g. example.com (no scheme, port, path or wildcard)"),
				),
				mcp.WithBoolean(argIncludeSubdomains,
					mcp.Description("Also match certificates for every subdomain (default: false)"),
					mcp.DefaultBool(false),
				),
				mcp.WithBoolean(argIncludeExpired,
					mcp.Description("Include certificates whose validity has ended (default: false)"),
					mcp.DefaultBool(false),
				),
				mcp.WithNumber(argLimit,
					integer(),
					mcp.Description(fmt.Sprintf("Maximum number of certificates to return, %d to %d (default: %d)",
						ctsearch.MinLimit, ctsearch.MaxLimit, ctsearch.DefaultLimit)),
					mcp.Min(ctsearch.MinLimit),
					mcp.Max(ctsearch.MaxLimit),
					mcp.DefaultNumber(ctsearch.DefaultLimit),
				),
			),
			Operation: searchCertificates(searcher),
			Role:      "certificateSearcher",
		},
		{
			Tool: mcp.NewTool(toolGetCertificateDetails,
				mcp.WithDescription("Get the details of one certificate by the identifier returned from search_certificates"),
				mcp.WithString(argCertID,
					mcp.Required(),
					mcp.Description("SSLMate certificate identifier"),
					mcp.MinLength(1),
				),
			),
			Operation: getCertificateDetails(searcher),
			Role:      "certificateInspector",
		},
	}
}

// integer narrows a number property to whole numbers.
func integer() mcp.PropertyOption {
	return func(schema map[string]any) { schema["type"] = "integer" }
}

// searchCertificates returns the operation behind search_certificates.
func searchCertificates(searcher CertificateSearcher) Operation {
	return func(ctx context.Context, args map[string]any) (any, error) {
		req, err := searchRequestFromArgs(args)
		if err != nil {
			return nil, err
		}
		return searcher.Search(ctx, req)
	}
}

// getCertificateDetails returns the operation behind get_certificate_details.
func getCertificateDetails(searcher CertificateSearcher) Operation {
	return func(ctx context.Context, args map[string]any) (any, error) {
		id, err := stringArg(args, argCertID)
		if err != nil {
			return nil, err
		}
		return searcher.Certificate(ctx, id)
	}
}

// searchRequestFromArgs decodes tool arguments into a request.
// Absent flags default to false and an absent limit to [ctsearch.DefaultLimit].
func searchRequestFromArgs(args map[string]any) (ctsearch.SearchRequest, error) {
	var req ctsearch.SearchRequest
	var err error

	if req.Domain, err = stringArg(args, argDomain); err != nil {
		return req, err
	}
	if req.IncludeSubdomains, err = boolArg(args, argIncludeSubdomains); err != nil {
		return req, err
	}
	if req.IncludeExpired, err = boolArg(args, argIncludeExpired); err != nil {
		return req, err
	}
	if req.Limit, err = intArg(args, argLimit, ctsearch.DefaultLimit); err != nil {
		return req, err
	}
	if req.Limit < ctsearch.MinLimit || req.Limit > ctsearch.MaxLimit {
		return req, &ctsearch.InvalidArgumentError{
			Field:  argLimit,
			Reason: fmt.Sprintf("must be between %d and %d", ctsearch.MinLimit, ctsearch.MaxLimit),
		}
	}
	return req, nil
}

// stringArg returns a required string argument.
func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", &ctsearch.InvalidArgumentError{Field: name, Reason: "is required"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ctsearch.InvalidArgumentError{Field: name, Reason: fmt.Sprintf("must be a string, got %T", v)}
	}
	return s, nil
}

// boolArg returns an optional boolean argument, false when absent.
func boolArg(args map[string]any, name string) (bool, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ctsearch.InvalidArgumentError{Field: name, Reason: fmt.Sprintf("must be a boolean, got %T", v)}
	}
	return b, nil
}

// intArg returns an optional integer argument. JSON numbers decode as float64,
// so whole floats are accepted and fractional ones rejected.
func intArg(args map[string]any, name string, def int) (int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}

	notInteger := &ctsearch.InvalidArgumentError{Field: name, Reason: fmt.Sprintf("must be an integer, got %v", v)}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > math.MaxInt32 {
			return 0, notInteger
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, notInteger
		}
		return int(i), nil
	default:
		return 0, notInteger
	}
}
