package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/apresai/panelcast/internal/assembly"
	"github.com/apresai/panelcast/internal/config"
	"github.com/apresai/panelcast/internal/pipeline"
	"github.com/apresai/panelcast/internal/publish"
	"github.com/apresai/panelcast/internal/script"
	"github.com/apresai/panelcast/internal/tts"
)

// stages says which collaborators a run needs.
type stages struct {
	script  bool
	audio   bool
	publish bool
}

func oauthConfig(c *config.Config) publish.OAuthConfig {
	return publish.OAuthConfig{
		ClientID:     c.Publish.ClientID,
		ClientSecret: c.Publish.ClientSecret,
		RedirectURL:  c.Publish.RedirectURL,
		AuthURL:      c.Publish.AuthURL,
		TokenURL:     c.Publish.TokenURL,
		Scope:        c.Publish.Scope,
	}
}

// checkKeys reports every credential a run would need but does not have.
func checkKeys(c *config.Config, need stages) error {
	var missing []string
	for _, k := range c.MissingKeys() {
		isTTS := k == "ELEVENLABS_API_KEY"
		if (isTTS && need.audio) || (!isTTS && need.script) {
			missing = append(missing, k)
		}
	}
	if need.publish {
		if err := c.PublishReady(); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// buildDeps creates the collaborators for one run. The returned close
// function releases provider clients.
func buildDeps(ctx context.Context, c *config.Config, log *slog.Logger, session *publish.Session, need stages) (pipeline.Deps, func(), error) {
	deps := pipeline.Deps{Logger: log, Session: session}
	closeFn := func() {}

	if err := checkKeys(c, need); err != nil {
		return deps, closeFn, err
	}

	if need.script {
		gen, err := script.NewGenerator(ctx, c.Script.Model, script.GeneratorOptions{
			AnthropicAPIKey: c.Script.AnthropicAPIKey,
			GeminiAPIKey:    c.Script.GeminiAPIKey,
			GeminiBaseURL:   c.Script.GeminiBaseURL,
		})
		if err != nil {
			return deps, closeFn, err
		}
		deps.Generator = gen
	}

	if need.audio {
		asm := assembly.NewFFmpegAssembler(c.FFmpeg, nil, log)
		if err := asm.ValidateBinary(); err != nil {
			return deps, closeFn, fmt.Errorf("%w (install with: brew install ffmpeg)", err)
		}
		deps.Assembler = asm

		pools, err := tts.PoolsFor(c.TTS.Provider)
		if err != nil {
			return deps, closeFn, err
		}
		deps.Pools = pools

		provider, err := tts.NewProvider(ctx, c.TTS.Provider, tts.Config{
			ElevenLabsAPIKey:  c.TTS.ElevenLabsAPIKey,
			ElevenLabsBaseURL: c.TTS.ElevenLabsBaseURL,
		})
		if err != nil {
			return deps, closeFn, err
		}
		deps.Provider = provider
		closeFn = func() {
			if err := provider.Close(); err != nil {
				log.Warn("close tts provider", "error", err)
			}
		}
	}

	if need.publish {
		deps.Authorizer = publish.NewAuthorizer(oauthConfig(c))
		deps.Publisher = publish.NewPublisher(c.Publish.UploadURL)
	}
	return deps, closeFn, nil
}
