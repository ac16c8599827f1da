package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apresai/panelcast/internal/config"
	"github.com/apresai/panelcast/internal/observability"
	"github.com/apresai/panelcast/internal/tts"
)

var Version = "dev"

var (
	v              = config.New()
	cfg            *config.Config
	logger         *slog.Logger
	shutdownTracer func(context.Context) error

	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "panelcast",
	Short:         "Turn a topic and a cast of speakers into a podcast episode",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		flagTUI = true
		return runGenerate(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("panelcast %s\n", Version)
	},
}

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices",
	Short: "List the voice pools for every TTS provider",
	RunE:  runListVoices,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(listVoicesCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ./panelcast.yaml if present)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Log every step instead of drawing a progress bar")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("work-dir", "audio_clips", "Directory for per-line clips and the final episode")
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = v.BindPFlag("work_dir", pf.Lookup("work-dir"))
}

func Execute() error {
	err := rootCmd.Execute()
	teardown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// setup loads configuration and starts logging and tracing for one command.
func setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	loaded, err := config.Load(v, flagConfig)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.Log.Level
	if flagVerbose {
		level = "debug"
	}
	logger = observability.InitLogger(level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cfg.Secrets.Prefix != "" {
		client, err := config.NewSecretsClient(ctx, cfg.Secrets.Region)
		if err != nil {
			logger.Warn("secrets manager unavailable", "error", err)
		} else if n := cfg.FillSecrets(ctx, client, logger); n > 0 {
			logger.Info("secrets loaded", "count", n)
		}
	}

	shutdownTracer, err = observability.InitTracer(ctx, "panelcast", Version)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdownTracer = nil
	}
	return nil
}

// teardown flushes pending spans. It runs even when the command failed.
func teardown() {
	if shutdownTracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracer(ctx); err != nil {
		logger.Warn("tracer shutdown", "error", err)
	}
}

func runListVoices(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nAvailable voices:")

	for _, name := range tts.ProviderNames() {
		voices, err := tts.AvailableVoices(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n  %s\n", strings.ToUpper(name))
		fmt.Fprintf(out, "  %s\n", strings.Repeat("─", 50))
		fmt.Fprintf(out, "  %-28s %-12s %-8s %s\n", "ID", "NAME", "GENDER", "DESCRIPTION")
		for _, voice := range voices {
			fmt.Fprintf(out, "  %-28s %-12s %-8s %s\n", voice.ID, voice.Name, voice.Gender, voice.Description)
		}
	}
	fmt.Fprintln(out)
	return nil
}
