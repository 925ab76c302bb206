package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/receipt-rag/internal/app"
	"github.com/ziadkadry99/receipt-rag/internal/query"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes receipt question answering and
// search tools.
type Server struct {
	engine *query.Engine
	status func(ctx context.Context) app.Status
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies. status
// may be nil.
func NewServer(engine *query.Engine, status func(ctx context.Context) app.Status) *Server {
	s := &Server{
		engine: engine,
		status: status,
	}

	s.mcp = server.NewMCPServer(
		"receiptrag",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(askDocumentsTool, s.handleAskDocuments)
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
	s.mcp.AddTool(indexStatusTool, s.handleIndexStatus)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
