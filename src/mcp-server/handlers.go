// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/ctsearch"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/mcp-server/templates"
)

// instructionsTemplate is the embedded template rendered by loadInstructions.
const instructionsTemplate = "instructions.md"

// instructionData holds the data used to populate the MCP server instructions template.
type instructionData struct {
	Tools     []toolInfo
	ToolRoles map[string]string // Maps tool roles to tool names for template use
	MinLimit  int
	MaxLimit  int
	Default   int
}

// toolInfo represents information about an MCP tool for template rendering.
type toolInfo struct {
	Name        string
	Description string
}

// loadInstructions parses the template with dynamic data from the provided tools and returns the
// rendered instructions as a string for MCP client initialization.
//
// Parameters:
//   - tools: Slice of tool definitions registered on the server
//
// Returns:
//   - string: The rendered instruction text describing server capabilities and tool usage
//   - error: If the embedded file cannot be read or template parsing fails
func loadInstructions(tools []ToolDefinition) (string, error) {
	templateBytes, err := templates.MagicEmbed.ReadFile(instructionsTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to load MCP server instructions template: %w", err)
	}

	data := instructionData{
		ToolRoles: make(map[string]string, len(tools)),
		MinLimit:  ctsearch.MinLimit,
		MaxLimit:  ctsearch.MaxLimit,
		Default:   ctsearch.DefaultLimit,
	}
	for _, tool := range tools {
		data.Tools = append(data.Tools, toolInfo{
			Name:        tool.Tool.Name,
			Description: tool.Tool.Description,
		})
		if tool.Role != "" {
			data.ToolRoles[tool.Role] = tool.Tool.Name
		}
	}

	tmpl, err := template.New("instructions").Option("missingkey=error").Parse(string(templateBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse instructions template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute instructions template: %w", err)
	}

	return buf.String(), nil
}

// DefaultInstructions renders the instructions for the built-in tool set.
// It does not contact the upstream.
func DefaultInstructions() (string, error) {
	return loadInstructions(createTools(nil))
}
