// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package mcpserver provides the [MCP] server for [SSLMate] certificate transparency search.
// It exposes search_certificates and get_certificate_details as MCP tools, routes every call
// through a single [Dispatcher] that validates arguments against the advertised input schema,
// and returns either the result or a structured error envelope.
//
// The same dispatcher backs the stdio transport ([mcp-go]), the streamable HTTP transport
// ([Official MCP SDK]) and the "search" CLI subcommand. The package uses a builder pattern
// for server construction.
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
// [SSLMate]: https://sslmate.com/ct_search_api/
// [mcp-go]: https://pkg.go.dev/github.com/mark3labs/mcp-go
// [Official MCP SDK]: https://pkg.go.dev/github.com/modelcontextprotocol/go-sdk
package mcpserver
