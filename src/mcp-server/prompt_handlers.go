// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/ctsearch"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/mcp-server/templates"
	"github.com/mark3labs/mcp-go/mcp"
)

// promptTemplateData holds the data used to populate prompt templates.
type promptTemplateData struct {
	Domain            string
	IncludeSubdomains bool
	CertID            string
	SearchTool        string
	DetailsTool       string
}

// parsePromptTemplate parses a prompt template file and converts it to MCP messages.
//
// This function reads a template file from the embedded filesystem, executes
// it with the provided data, and converts the structured content into MCP prompt messages.
// Lines starting with "### User:" or "### Assistant:" switch the role of the
// following lines; other headers and blank lines are dropped.
//
// Parameters:
//   - templateName: Name of the template file (without .md extension)
//   - data: Template data to populate placeholders
//
// Returns:
//   - []mcp.PromptMessage: Parsed MCP messages
//   - error: Any error during template execution or parsing
func parsePromptTemplate(templateName string, data promptTemplateData) ([]mcp.PromptMessage, error) {
	templateContent, err := templates.MagicEmbed.ReadFile(templateName + ".md")
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", templateName, err)
	}

	tmpl, err := template.New(templateName).Parse(string(templateContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	var messages []mcp.PromptMessage
	var currentRole mcp.Role
	var currentContent strings.Builder

	flush := func() {
		if currentContent.Len() > 0 {
			messages = append(messages, mcp.NewPromptMessage(
				currentRole,
				mcp.NewTextContent(strings.TrimSpace(currentContent.String())),
			))
			currentContent.Reset()
		}
	}

	for _, line := range strings.Split(buf.String(), "\n") {
		line = strings.TrimSpace(line)

		// Check for role markers first (before skipping headers)
		switch {
		case strings.HasPrefix(line, "### Assistant:"):
			flush()
			currentRole = mcp.RoleAssistant
			continue
		case strings.HasPrefix(line, "### User:"):
			flush()
			currentRole = mcp.RoleUser
			continue
		}

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if currentRole != "" {
			if currentContent.Len() > 0 {
				currentContent.WriteString("\n")
			}
			currentContent.WriteString(line)
		}
	}
	flush()

	return messages, nil
}

// handleAuditDomainPrompt handles the audit_domain_certificates prompt.
//
// It walks the assistant through an inventory review: list current certificates,
// list expired ones, group them by issuer and flag issuers or names the owner
// does not recognize.
//
// Expected arguments in request.Params.Arguments:
//   - domain: Domain to audit (required, bare hostname)
//   - include_subdomains: "true" or "false" (default: true)
func handleAuditDomainPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	domain := strings.TrimSpace(request.Params.Arguments[argDomain])
	if err := ctsearch.ValidateDomain(domain); err != nil {
		return nil, err
	}

	includeSubdomains := true
	if v := request.Params.Arguments[argIncludeSubdomains]; v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &ctsearch.InvalidArgumentError{Field: argIncludeSubdomains, Reason: "must be true or false"}
		}
		includeSubdomains = b
	}

	messages, err := parsePromptTemplate("audit-domain-certificates-prompt", promptTemplateData{
		Domain:            domain,
		IncludeSubdomains: includeSubdomains,
		SearchTool:        toolSearchCertificates,
		DetailsTool:       toolGetCertificateDetails,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse domain audit template: %w", err)
	}

	return mcp.NewGetPromptResult(
		"Certificate Inventory Audit for "+domain,
		messages,
	), nil
}

// handleInspectCertificatePrompt handles the inspect_certificate prompt.
func handleInspectCertificatePrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	certID := strings.TrimSpace(request.Params.Arguments[argCertID])
	if certID == "" {
		return nil, &ctsearch.InvalidArgumentError{Field: argCertID, Reason: "must not be empty"}
	}

	messages, err := parsePromptTemplate("inspect-certificate-prompt", promptTemplateData{
		CertID:      certID,
		DetailsTool: toolGetCertificateDetails,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate inspection template: %w", err)
	}

	return mcp.NewGetPromptResult(
		"Certificate Inspection",
		messages,
	), nil
}
