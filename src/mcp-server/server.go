// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/ctsearch"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/logger"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/mcp-server/templates"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/version"
)

// GetVersion returns the version compiled into the version package.
// Binaries may override it at link time with -ldflags.
func GetVersion() string {
	return version.Version
}

// RunOptions carries the command-line overrides applied on top of the
// configuration file and environment.
//
// Fields:
//   - ConfigFile: Path to a JSON or YAML config file; empty falls back to MCP_SSLMATE_CONFIG_FILE
//   - APIKey: SSLMate API key; empty keeps the configured key
//   - LogLevel: debug, info, warn, error or silent; empty keeps the configured level
//   - HTTPAddr: When set, serve streamable HTTP on this address instead of stdio
type RunOptions struct {
	ConfigFile string
	APIKey     string
	LogLevel   string
	HTTPAddr   string
}

// resolveConfig loads the configuration and applies the flag overrides.
func resolveConfig(opts RunOptions) (*Config, error) {
	config, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.applyFlags(opts.APIKey, opts.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid flag: %w", err)
	}
	return config, nil
}

// newServer wires the search client, tools, instructions, resources and prompts
// into a built [Server].
//
// Parameters:
//   - config: Resolved configuration
//   - version: Server version used for identification and the upstream User-Agent
//   - log: Logger shared by the client and the dispatcher
func newServer(config *Config, version string, log logger.Logger) (*Server, error) {
	client := ctsearch.NewClient(config.ClientOptions(version, log))

	tools := createTools(client)

	// Instructions are rendered from the registered tools, so they never
	// name a tool the server does not expose.
	instructions, err := loadInstructions(tools)
	if err != nil {
		return nil, fmt.Errorf("failed to load instructions: %w", err)
	}

	s, err := NewServerBuilder().
		WithConfig(config).
		WithEmbed(templates.MagicEmbed).
		WithVersion(version).
		WithLogger(log).
		WithTools(tools...).
		WithDefaultResources().
		WithPrompts(createPrompts()...).
		WithInstructions(instructions).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build server: %w", err)
	}
	return s, nil
}

// Serve resolves the configuration, builds the server and runs the selected
// transport until ctx is canceled or the transport stops.
//
// Parameters:
//   - ctx: Context whose cancellation shuts the server down
//   - version: Server version string
//   - opts: Command-line overrides
//   - stdin, stdout: Stdio transport streams (unused when opts.HTTPAddr is set)
//   - stderr: Log destination when no log file is configured
//
// Returns:
//   - nil on a clean shutdown, including cancellation of ctx
//   - An error for configuration, build or transport failures
//
// Logs never go to stdout: on the stdio transport it carries protocol frames only.
func Serve(ctx context.Context, version string, opts RunOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	config, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	log, closeLog, err := config.newLogger(stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := newServer(config, version, log)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if opts.HTTPAddr != "" {
			errChan <- s.ServeHTTP(ctx, opts.HTTPAddr)
			return
		}
		log.Infof("%s %s listening on stdio", serverName, version)
		errChan <- s.ServeStdio(ctx, stdin, stdout)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		// Graceful shutdown triggered by signal
		log.Infof("shutting down: %v", ctx.Err())
	}

	// The transport still owns the logger until it returns.
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("transport stopped with error: %v", err)
		}
	case <-time.After(shutdownTimeout):
		log.Warnf("transport did not stop within %s", shutdownTimeout)
	}
	log.Infof("%s stopped", serverName)
	return nil
}
