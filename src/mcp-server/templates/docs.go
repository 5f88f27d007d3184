// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package templates provides embedded filesystem access for MCP server template files.
//
// The markdown files are Go text templates:
//   - instructions.md: server instructions sent during MCP initialization
//   - cli_help.md: long description and examples of the root command
//   - *-prompt.md: guided prompt conversations, split on "### User:" and "### Assistant:" markers
//
// [MagicEmbed] is the default [EmbedFS] implementation and is safe for concurrent use.
//
// Example usage:
//
//	import "github.com/H0llyW00dzZ/sslmate-mcp/src/mcp-server/templates"
//
//	entries, err := templates.MagicEmbed.ReadDir(".")
//	if err != nil {
//		return fmt.Errorf("failed to list templates: %w", err)
//	}
package templates
