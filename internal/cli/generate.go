package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/panelcast/internal/brief"
	"github.com/apresai/panelcast/internal/pipeline"
	"github.com/apresai/panelcast/internal/progress"
	"github.com/apresai/panelcast/internal/publish"
	"github.com/apresai/panelcast/internal/script"
	"github.com/apresai/panelcast/internal/tts"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write, voice and assemble a podcast episode",
	Example: `  panelcast generate --topic "The future of fusion" --duration 10 \
    --speaker "Alex Chen:male:Host:Austin:curious" \
    --speaker "Maya Patel:female:Physicist:Oxford:precise"
  panelcast generate --brief episode.yaml --publish --auth-code CODE`,
	RunE: runGenerate,
}

var (
	flagBrief       string
	flagTopic       string
	flagDuration    int
	flagSetting     string
	flagSpeakers    []string
	flagSource      string
	flagOutput      string
	flagScriptOnly  bool
	flagScriptOut   string
	flagFromScript  string
	flagTUI         bool
	flagPublish     bool
	flagAuthCode    string
	flagTitle       string
	flagDescription string
	flagSaveBrief   string
)

func init() {
	rootCmd.AddCommand(generateCmd)
	f := generateCmd.Flags()
	f.StringVarP(&flagBrief, "brief", "b", "", "YAML brief file (flags override its fields)")
	f.StringVarP(&flagTopic, "topic", "p", "", "Episode topic")
	f.IntVarP(&flagDuration, "duration", "d", 10, "Target length in minutes")
	f.StringVarP(&flagSetting, "setting", "s", "", "Where the conversation takes place")
	f.StringArrayVar(&flagSpeakers, "speaker", nil, `Speaker as "Name:gender[:profession[:background[:personality]]]" (repeat 1-5 times)`)
	f.StringVarP(&flagSource, "source", "i", "", "Background material: URL, PDF or text file")
	f.StringVarP(&flagOutput, "output", "o", "", "Copy the finished episode to this path")
	f.BoolVarP(&flagScriptOnly, "script-only", "S", false, "Write the script and stop before synthesis")
	f.StringVar(&flagScriptOut, "script-out", "script.txt", "Script path for --script-only")
	f.StringVarP(&flagFromScript, "from-script", "f", "", "Voice an existing script file instead of generating one")
	f.BoolVarP(&flagTUI, "tui", "t", false, "Build the brief in an interactive wizard")
	f.BoolVar(&flagPublish, "publish", false, "Publish the episode when it is ready")
	f.StringVar(&flagAuthCode, "auth-code", "", "Authorization code from the URL printed by auth-url")
	f.StringVar(&flagTitle, "title", "", "Published episode title (default: the topic)")
	f.StringVar(&flagDescription, "description", "", "Published episode description")
	f.StringVar(&flagSaveBrief, "save-brief", "", "Write the resolved brief to this YAML file")

	f.StringP("model", "m", "haiku", "Script model: "+strings.Join(script.ModelNames(), ", "))
	f.StringP("tts", "T", "elevenlabs", "TTS provider: "+strings.Join(tts.ProviderNames(), ", "))
	f.String("artist", "AI Podcast Generator", "Artist tag written into the episode")
	_ = v.BindPFlag("script.model", f.Lookup("model"))
	_ = v.BindPFlag("tts.provider", f.Lookup("tts"))
	_ = v.BindPFlag("metadata.artist", f.Lookup("artist"))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	b, err := resolveBrief(cmd)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid brief: %w", err)
	}
	if flagSaveBrief != "" {
		if err := brief.Save(b, flagSaveBrief); err != nil {
			return err
		}
	}
	if flagScriptOnly && flagFromScript != "" {
		return errors.New("--script-only and --from-script are mutually exclusive")
	}
	if flagPublish && flagScriptOnly {
		return errors.New("--publish needs audio; drop --script-only")
	}

	need := stages{
		script:  flagFromScript == "",
		audio:   !flagScriptOnly,
		publish: flagPublish,
	}
	ctx := cmd.Context()
	deps, closeDeps, err := buildDeps(ctx, cfg, logger, &publish.Session{}, need)
	defer closeDeps()
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Brief:      b,
		WorkDir:    cfg.WorkDir,
		ScriptOnly: flagScriptOnly,
		ScriptPath: flagScriptOut,
		FromScript: flagFromScript,
		Output:     flagOutput,
		Artist:     cfg.Metadata.Artist,
	}
	if flagPublish {
		opts.Publish = &pipeline.PublishOptions{
			AuthCode:    flagAuthCode,
			Title:       flagTitle,
			Description: flagDescription,
			Status:      cfg.Publish.Status,
			Explicit:    cfg.Publish.Explicit,
		}
	}

	if !flagVerbose {
		r := progress.NewBarRenderer(os.Stdout)
		defer r.Finish()
		deps.Progress = r.Handle
	}

	rc, err := pipeline.New(deps).Run(ctx, opts)
	if err != nil {
		return err
	}
	if flagVerbose {
		for _, line := range rc.Assignment.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Episode: %s\n", rc.FinalPath)
	}
	return nil
}

// resolveBrief merges, in order, the wizard or brief file and then any
// explicit flags.
func resolveBrief(cmd *cobra.Command) (*brief.Brief, error) {
	b := &brief.Brief{Duration: flagDuration}

	switch {
	case flagTUI:
		res, err := runInteractiveSetup(b)
		if err != nil {
			return nil, err
		}
		b = res.brief
		v.Set("script.model", res.model)
		v.Set("tts.provider", res.provider)
		cfg.Script.Model = res.model
		cfg.TTS.Provider = res.provider
	case flagBrief != "":
		loaded, err := brief.Load(flagBrief)
		if err != nil {
			return nil, err
		}
		b = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("topic") {
		b.Topic = flagTopic
	}
	if flags.Changed("duration") || b.Duration == 0 {
		b.Duration = flagDuration
	}
	if flags.Changed("setting") {
		b.Setting = flagSetting
	}
	if flags.Changed("source") {
		b.Source = flagSource
	}
	if len(flagSpeakers) > 0 {
		speakers := make([]brief.Speaker, 0, len(flagSpeakers))
		for _, s := range flagSpeakers {
			sp, err := brief.ParseSpeakerFlag(s)
			if err != nil {
				return nil, err
			}
			speakers = append(speakers, sp)
		}
		b.Speakers = speakers
	}
	return b, nil
}
