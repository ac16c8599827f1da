// Package mcpserver exposes podcast generation and publishing as MCP tools
// over stdio.
package mcpserver

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/apresai/panelcast/internal/publish"
)

// Config holds server defaults.
type Config struct {
	Version       string
	WorkDir       string
	Artist        string
	Model         string
	TTS           string
	PublishStatus string
	Explicit      bool
}

// Server is the MCP server for podcast generation.
type Server struct {
	mcp      *server.MCPServer
	handlers *Handlers
	runs     *RunManager
	log      *slog.Logger
}

// New creates and configures the MCP server. baseCtx bounds background
// runs; cancel it to abort them on shutdown.
func New(baseCtx context.Context, cfg Config, build BuildFunc, authorizer *publish.Authorizer, publisher *publish.Publisher, logger *slog.Logger) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	runs := NewRunManager(baseCtx, cfg, build, &publish.Session{}, logger)
	handlers := NewHandlers(runs, authorizer, publisher, cfg, logger)

	mcpServer := server.NewMCPServer(
		"panelcast",
		cfg.Version,
		server.WithToolCapabilities(true),
	)

	tools := ToolDefs()
	mcpServer.AddTool(tools[0], handlers.HandleGeneratePodcast)
	mcpServer.AddTool(tools[1], handlers.HandleGetPodcast)
	mcpServer.AddTool(tools[2], handlers.HandleListVoices)
	mcpServer.AddTool(tools[3], handlers.HandleAuthorizePublisher)
	mcpServer.AddTool(tools[4], handlers.HandlePublishPodcast)

	return &Server{
		mcp:      mcpServer,
		handlers: handlers,
		runs:     runs,
		log:      logger,
	}
}

// Serve speaks MCP on in/out until ctx is cancelled or in closes. Logs must
// not go to out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info("Starting MCP server on stdio")
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Shutdown waits for an active run to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.runs.Wait(ctx)
}
