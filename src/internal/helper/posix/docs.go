// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package posix provides [POSIX]-compliant helper functions for cross-platform compatibility.
//
// Key functions:
//   - GetExecutableName: Returns the executable name without extension for CLI usage
//
// CLI Framework Integration:
//
//	rootCmd := &cobra.Command{
//	    Use:   posix.GetExecutableName(),
//	    Short: "MCP server for certificate transparency search",
//	}
//
// Cross-Platform Behavior:
//
//   - Linux/macOS: "/usr/local/bin/sslmate-mcp" → "sslmate-mcp"
//   - Windows: "C:\bin\sslmate-mcp.exe" → "sslmate-mcp"
//   - Fallback: Empty args → "sslmate-mcp"
//
// [POSIX]: https://grokipedia.com/page/POSIX
package posix
