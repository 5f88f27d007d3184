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
	"net"
	"net/http"
	"time"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/helper/jsonrpc"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/logger"
	"github.com/mark3labs/mcp-go/server"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// readHeaderTimeout bounds slow clients on the HTTP transport.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds the drain of in-flight HTTP requests.
	shutdownTimeout = 5 * time.Second
)

// sdkToolHandler adapts a dispatcher tool to the [Official MCP SDK]. Arguments
// arrive unvalidated so schema violations surface as the same error envelope
// the stdio transport returns.
//
// [Official MCP SDK]: https://pkg.go.dev/github.com/modelcontextprotocol/go-sdk
func sdkToolHandler(d *Dispatcher, name string) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		var params any
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			params = req.Params.Arguments
		}
		args, err := jsonrpc.Arguments(params)
		if err != nil {
			return sdkToolResult(d.fail(&ToolError{Kind: KindInvalidArgument, Message: err.Error()})), nil
		}
		return sdkToolResult(d.Invoke(ctx, name, args)), nil
	}
}

// sdkToolResult renders a dispatcher result as SDK tool content.
func sdkToolResult(r *ToolResult) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		IsError: r.IsError(),
		Content: []sdk.Content{&sdk.TextContent{Text: r.Text()}},
	}
}

// newSDKServer builds an [Official MCP SDK] server exposing every dispatcher tool.
//
// [Official MCP SDK]: https://pkg.go.dev/github.com/modelcontextprotocol/go-sdk
func newSDKServer(d *Dispatcher, version, instructions string, log logger.Logger) *sdk.Server {
	s := sdk.NewServer(&sdk.Implementation{
		Name:    serverName,
		Version: version,
	}, &sdk.ServerOptions{Instructions: instructions})

	for _, def := range d.Tools() {
		s.AddTool(&sdk.Tool{
			Name:        def.Tool.Name,
			Description: def.Tool.Description,
			InputSchema: def.Tool.InputSchema,
		}, sdkToolHandler(d, def.Tool.Name))
		log.Debugf("tool %s exposed over HTTP", def.Tool.Name)
	}
	return s
}

// ServeStdio runs the mcp-go stdio transport until ctx is canceled or the input closes.
//
// Parameters:
//   - ctx: Context whose cancellation stops the server
//   - in: Source of JSON-RPC requests, os.Stdin in production
//   - out: Destination of JSON-RPC responses, os.Stdout in production
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdioServer := server.NewStdioServer(s.mcp)
	return stdioServer.Listen(ctx, in, out)
}

// HTTPHandler returns a streamable HTTP handler backed by the same dispatcher as stdio.
func (s *Server) HTTPHandler() http.Handler {
	sdkServer := newSDKServer(s.dispatcher, s.deps.Version, s.deps.Instructions, s.deps.Logger)
	return sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server {
		return sdkServer
	}, nil)
}

// ServeHTTP listens on addr and serves the streamable HTTP transport until ctx is canceled.
// A canceled context is a clean shutdown and returns nil.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.serveHTTP(ctx, ln)
}

// serveHTTP serves on an existing listener.
func (s *Server) serveHTTP(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Graceful shutdown when context is cancelled
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.deps.Logger.Warnf("http shutdown: %v", err)
		}
	}()

	s.deps.Logger.Infof("streamable HTTP transport listening on %s", ln.Addr())
	err := httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		// Serve returns as soon as Shutdown starts; wait for the drain.
		<-shutdownDone
		return nil
	}
	return err
}
