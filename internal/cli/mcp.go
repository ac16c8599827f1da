package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/apresai/panelcast/internal/mcpserver"
	"github.com/apresai/panelcast/internal/pipeline"
	"github.com/apresai/panelcast/internal/publish"
)

// shutdownGrace bounds how long an active run may keep going after a
// shutdown signal.
const shutdownGrace = 8 * time.Second

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve podcast generation and publishing as MCP tools over stdio",
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// ExecuteMCP runs the mcp subcommand with the process arguments appended.
func ExecuteMCP() error {
	rootCmd.SetArgs(append([]string{"mcp"}, os.Args[1:]...))
	return Execute()
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		authorizer *publish.Authorizer
		publisher  *publish.Publisher
	)
	if err := cfg.PublishReady(); err == nil {
		authorizer = publish.NewAuthorizer(oauthConfig(cfg))
		publisher = publish.NewPublisher(cfg.Publish.UploadURL)
	} else {
		logger.Info("publishing tools disabled", "reason", err)
	}

	build := func(ctx context.Context, model, provider string, publishing bool) (pipeline.Deps, func(), error) {
		c := *cfg
		if model != "" {
			c.Script.Model = model
		}
		if provider != "" {
			c.TTS.Provider = provider
		}
		return buildDeps(ctx, &c, logger, nil, stages{script: true, audio: true, publish: publishing})
	}

	srv := mcpserver.New(ctx, mcpserver.Config{
		Version:       Version,
		WorkDir:       cfg.WorkDir,
		Artist:        cfg.Metadata.Artist,
		Model:         cfg.Script.Model,
		TTS:           cfg.TTS.Provider,
		PublishStatus: cfg.Publish.Status,
		Explicit:      cfg.Publish.Explicit,
	}, build, authorizer, publisher, logger)

	err := srv.Serve(ctx, os.Stdin, os.Stdout)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer waitCancel()
	if werr := srv.Shutdown(waitCtx); werr != nil {
		logger.Warn("run still active at shutdown", "error", werr)
	}
	logger.Info("Shutdown complete")
	return err
}
