// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// sslmate-mcp is a Model Context Protocol (MCP) server that lets AI assistants
// search SSLMate's certificate transparency index.
//
// # Installation
//
// Install with Go 1.25.5 or later:
//
//	go install github.com/H0llyW00dzZ/sslmate-mcp/cmd/sslmate-mcp@latest
//
// # Usage
//
//	sslmate-mcp [FLAGS]
//	sslmate-mcp search <domain> [--include-subdomains] [--include-expired] [--limit N] [--json]
//
// # Flags
//
//	--config        Path to MCP server configuration file (JSON or YAML)
//	--api-key       SSLMate API key
//	--log-level     debug, info, warn, error or silent
//	--http          Serve streamable HTTP on this address instead of stdio
//	--instructions  Print the instructions sent to MCP clients
//	--help          Show help information
//	--version       Show version information
//
// # Environment Variables
//
//	MCP_SSLMATE_CONFIG_FILE  Path to configuration file (alternative to --config flag)
//	SSLMATE_API_KEY          SSLMate API key (optional; raises the upstream rate limit)
//	SSLMATE_API_BASE         Upstream base URL (default https://api.sslmate.com/v1)
//	LOG_LEVEL                Log level (default info)
//	LOG_FILE                 Append logs to this file instead of stderr
//
// # MCP Tools
//
//   - search_certificates: Certificates issued for a domain, optionally with subdomains and expired ones
//   - get_certificate_details: One certificate by its SSLMate identifier
//
// # MCP Resources
//
//   - config://template: Configuration template with defaults
//   - info://version: Version and capabilities
//   - sslmate://search/{domain}: Default search for a domain
//
// # MCP Prompts
//
//   - audit_domain_certificates: Inventory and review the certificates of a domain
//   - inspect_certificate: Explain a single certificate
package main
