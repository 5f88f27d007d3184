// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"fmt"
	"os"

	mcpserver "github.com/H0llyW00dzZ/sslmate-mcp/src/mcp-server"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/mcp-server/templates"
)

var version string // set by ldflags or defaults to imported version

func init() {
	if version == "" {
		version = mcpserver.GetVersion()
	}
}

func main() {
	instructions, err := mcpserver.DefaultInstructions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load instructions: %v\n", err)
		os.Exit(1)
	}

	framework := mcpserver.NewCLIFramework("", mcpserver.ServerDependencies{
		Embed:        templates.MagicEmbed,
		Version:      version,
		Instructions: instructions,
	})

	// Cobra already prints the error
	if err := framework.BuildRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
