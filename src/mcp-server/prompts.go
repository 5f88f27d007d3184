// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Prompt names.
const (
	promptAuditDomain        = "audit_domain_certificates"
	promptInspectCertificate = "inspect_certificate"
)

// createPrompts creates and returns all MCP prompt definitions with their handlers
func createPrompts() []server.ServerPrompt {
	return []server.ServerPrompt{
		{
			Prompt: mcp.NewPrompt(promptAuditDomain,
				mcp.WithPromptDescription("Review every certificate issued for a domain and flag anything unexpected"),
				mcp.WithArgument(argDomain,
					mcp.ArgumentDescription("Domain to audit, e.g. example.com"),
					mcp.RequiredArgument(),
				),
				mcp.WithArgument(argIncludeSubdomains,
					mcp.ArgumentDescription("'true' to include subdomains in the audit (default: true)"),
				),
			),
			Handler: handleAuditDomainPrompt,
		},
		{
			Prompt: mcp.NewPrompt(promptInspectCertificate,
				mcp.WithPromptDescription("Explain a single certificate found through search_certificates"),
				mcp.WithArgument(argCertID,
					mcp.ArgumentDescription("SSLMate certificate identifier"),
					mcp.RequiredArgument(),
				),
			),
			Handler: handleInspectCertificatePrompt,
		},
	}
}
