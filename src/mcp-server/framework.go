// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/logger"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/mcp-server/templates"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// serverName identifies the server in the MCP initialize handshake.
const serverName = "SSLMate Certificate Search"

// ResourceHandler defines the signature for resource handlers that provide static or dynamic resources.
// It processes resource read requests and returns the resource contents.
//
// Parameters:
//   - ctx: Context for cancellation and timeout handling
//   - request: The MCP resource read request containing the resource URI
//
// Returns:
//   - A slice of resource contents or an error if the resource cannot be read
type ResourceHandler = func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error)

// PromptHandler defines the signature for prompt handlers that provide predefined prompts.
//
// Parameters:
//   - ctx: Context for cancellation and timeout handling
//   - request: The MCP prompt request containing the prompt name and arguments
//
// Returns:
//   - The prompt result containing messages and description, or an error if the prompt is not found
type PromptHandler = func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error)

// ServerResourceTemplate pairs a URI template with the handler that serves matching URIs.
type ServerResourceTemplate struct {
	Template mcp.ResourceTemplate
	Handler  ResourceHandler
}

// ServerDependencies holds all dependencies needed to create the MCP server.
// It consolidates all required components for server initialization using the builder pattern.
//
// Fields:
//   - Config: Resolved server configuration (upstream, defaults, log)
//   - Embed: Embedded filesystem for templates and documentation
//   - Version: Server version string for identification
//   - Logger: Structured logger shared by the dispatcher and handlers
//   - Tools: Tool definitions routed through the [Dispatcher]
//   - Resources: Static and dynamic resources provided by the server
//   - ResourceTemplates: URI templates resolved at read time
//   - Prompts: Predefined prompts for guided workflows
//   - Instructions: Text sent to clients during initialization
//
// This struct is used internally by ServerBuilder and should not be instantiated directly.
type ServerDependencies struct {
	Config            *Config
	Embed             templates.EmbedFS
	Version           string
	Logger            logger.Logger
	Tools             []ToolDefinition
	Resources         []server.ServerResource
	ResourceTemplates []ServerResourceTemplate
	Prompts           []server.ServerPrompt
	Instructions      string
	defaultResources  bool
}

// ServerBuilder helps construct the [MCP] server with proper dependencies using a fluent interface.
// It implements the builder pattern to configure and create MCP servers with all required components.
//
// Example:
//
//	client := ctsearch.NewClient(config.ClientOptions(version, log))
//	s, err := NewServerBuilder().
//	    WithConfig(config).
//	    WithVersion("1.0.0").
//	    WithLogger(log).
//	    WithTools(createTools(client)...).
//	    WithDefaultResources().
//	    Build()
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
type ServerBuilder struct{ deps ServerDependencies }

// NewServerBuilder creates a new server builder with default empty dependencies.
//
// Returns:
//   - A pointer to a new ServerBuilder instance ready for configuration
func NewServerBuilder() *ServerBuilder { return &ServerBuilder{} }

// WithConfig sets the server configuration.
//
// Parameters:
//   - config: Pointer to the server configuration (nil means built-in defaults)
//
// Returns:
//   - The ServerBuilder instance for method chaining
func (b *ServerBuilder) WithConfig(config *Config) *ServerBuilder {
	b.deps.Config = config
	return b
}

// WithEmbed sets the embedded filesystem for templates and documentation.
//
// Parameters:
//   - embed: The embedded filesystem, typically [templates.MagicEmbed]
//
// Returns:
//   - The ServerBuilder instance for method chaining
func (b *ServerBuilder) WithEmbed(embed templates.EmbedFS) *ServerBuilder {
	b.deps.Embed = embed
	return b
}

// WithVersion sets the server version string used for identification.
//
// Parameters:
//   - version: The server version string (e.g., "1.0.0" or "v1.2.3")
//
// Returns:
//   - The ServerBuilder instance for method chaining
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.deps.Version = version
	return b
}

// WithLogger sets the logger that records every tool call.
func (b *ServerBuilder) WithLogger(log logger.Logger) *ServerBuilder {
	b.deps.Logger = log
	return b
}

// WithTools adds tool definitions to the server.
//
// Parameters:
//   - tools: Variable number of ToolDefinition structs containing tool specs and operations
//
// Returns:
//   - The ServerBuilder instance for method chaining
//
// Every tool is registered behind the same [Dispatcher], so argument validation
// and error translation are identical across transports.
func (b *ServerBuilder) WithTools(tools ...ToolDefinition) *ServerBuilder {
	b.deps.Tools = append(b.deps.Tools, tools...)
	return b
}

// WithResources adds static and dynamic resources to the MCP server.
//
// Parameters:
//   - resources: Variable number of server.ServerResource structs containing resource specs and handlers
//
// Returns:
//   - The ServerBuilder instance for method chaining
func (b *ServerBuilder) WithResources(resources ...server.ServerResource) *ServerBuilder {
	b.deps.Resources = append(b.deps.Resources, resources...)
	return b
}

// WithResourceTemplates adds URI-templated resources to the MCP server.
func (b *ServerBuilder) WithResourceTemplates(tmpls ...ServerResourceTemplate) *ServerBuilder {
	b.deps.ResourceTemplates = append(b.deps.ResourceTemplates, tmpls...)
	return b
}

// WithDefaultResources registers the built-in resources at Build time:
// config://template, info://version and the sslmate://search/{domain} template.
//
// They are created during Build because they describe the final tool, resource
// and prompt set and route searches through the built [Dispatcher].
func (b *ServerBuilder) WithDefaultResources() *ServerBuilder {
	b.deps.defaultResources = true
	return b
}

// WithPrompts adds predefined prompts to the MCP server for guided workflows.
//
// Parameters:
//   - prompts: Variable number of server.ServerPrompt structs containing prompt specs and handlers
//
// Returns:
//   - The ServerBuilder instance for method chaining
func (b *ServerBuilder) WithPrompts(prompts ...server.ServerPrompt) *ServerBuilder {
	b.deps.Prompts = append(b.deps.Prompts, prompts...)
	return b
}

// WithInstructions sets the server instructions sent to clients during initialization.
//
// Parameters:
//   - instructions: Instructions text, typically from [loadInstructions]
//
// Returns:
//   - The ServerBuilder instance for method chaining
func (b *ServerBuilder) WithInstructions(instructions string) *ServerBuilder {
	b.deps.Instructions = instructions
	return b
}

// Server is a built MCP server: the mcp-go server for stdio plus the shared
// [Dispatcher] the HTTP transport and the CLI also use.
type Server struct {
	mcp        *server.MCPServer
	dispatcher *Dispatcher
	deps       ServerDependencies
	catalog    *catalog
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Dispatcher returns the dispatcher backing every tool.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// Version returns the configured server version.
func (s *Server) Version() string { return s.deps.Version }

// Instructions returns the instructions sent during initialization.
func (s *Server) Instructions() string { return s.deps.Instructions }

// Build creates the [MCP] server with all configured dependencies.
//
// Returns:
//   - A pointer to the configured Server
//   - An error if no tool was configured, a tool definition is invalid,
//     or two definitions share a name
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
func (b *ServerBuilder) Build() (*Server, error) {
	deps := b.deps
	if deps.Config == nil {
		deps.Config = defaultConfig()
	}
	if deps.Embed == nil {
		deps.Embed = templates.MagicEmbed
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewMCPLogger(nil, logger.LevelSilent)
	}
	if len(deps.Tools) == 0 {
		return nil, errors.New("no tools configured")
	}

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Logger:  deps.Logger,
		Secrets: []string{deps.Config.Upstream.APIKey},
	}, deps.Tools...)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	opts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
	}
	if deps.Instructions != "" {
		opts = append(opts, server.WithInstructions(deps.Instructions))
	}
	s := server.NewMCPServer(serverName, deps.Version, opts...)

	for _, def := range dispatcher.Tools() {
		s.AddTool(def.Tool, mcpToolHandler(dispatcher, def.Tool.Name))
	}

	cat := &catalog{name: serverName, version: deps.Version}
	if deps.defaultResources {
		deps.Resources = append(createResources(cat, deps.Config), deps.Resources...)
		deps.ResourceTemplates = append(createResourceTemplates(dispatcher, deps.Config), deps.ResourceTemplates...)
	}

	for _, r := range deps.Resources {
		s.AddResource(r.Resource, r.Handler)
	}
	for _, t := range deps.ResourceTemplates {
		s.AddResourceTemplate(t.Template, t.Handler)
	}
	for _, p := range deps.Prompts {
		s.AddPrompt(p.Prompt, p.Handler)
	}

	cat.fill(dispatcher.Tools(), deps.Resources, deps.ResourceTemplates, deps.Prompts)

	return &Server{
		mcp:        s,
		dispatcher: dispatcher,
		deps:       deps,
		catalog:    cat,
	}, nil
}

// mcpToolHandler adapts the dispatcher to an mcp-go tool handler.
// Failures become error results carrying the JSON envelope; the handler itself
// never returns a Go error.
func mcpToolHandler(d *Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := d.Invoke(ctx, name, request.GetArguments())
		if result.IsError() {
			return mcp.NewToolResultError(result.Text()), nil
		}
		return mcp.NewToolResultText(result.Text()), nil
	}
}
