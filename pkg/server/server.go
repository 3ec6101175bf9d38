// Package server exposes the survey service over MCP (stdio and SSE) and a
// REST API.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/osmsurvey/pkg/tools"
	"github.com/NERVsystems/osmsurvey/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "osm-survey-server"

// Server encapsulates the MCP server with the survey tools registered.
type Server struct {
	srv    *mcpserver.MCPServer
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewServer creates an MCP server and registers every tool of registry.
func NewServer(registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing OSM survey MCP server",
		"name", ServerName,
		"version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	registry.RegisterTools(srv)

	return &Server{
		srv:    srv,
		logger: logger,
	}
}

// MCPServer returns the underlying MCP server for the SSE transport.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.srv
}

// RunStdio serves MCP over stdin and stdout until ctx is canceled or stdin
// closes. A second concurrent call returns immediately.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	stdio := mcpserver.NewStdioServer(s.srv)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("transport_enabled", "type", "stdio")

	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
