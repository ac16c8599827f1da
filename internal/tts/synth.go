package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/apresai/panelcast/internal/retry"
	"github.com/apresai/panelcast/internal/script"
	"github.com/apresai/panelcast/internal/voice"
)

const (
	// SynthesisTimeout bounds a single synthesis attempt.
	SynthesisTimeout = 30 * time.Second

	maxAttempts = 3
	retryDelay  = 2 * time.Second
)

// ErrNoAudioGenerated means every line failed to synthesize.
var ErrNoAudioGenerated = errors.New("no audio files were generated")

// Clip is one synthesized line on disk.
type Clip struct {
	Index   int
	Speaker string
	Path    string
}

// ClipName is the on-disk name for the line at index: a 1-based,
// zero-padded sequence number followed by the speaker label.
func ClipName(index int, speaker string) string {
	return fmt.Sprintf("%03d_%s.mp3", index+1, speaker)
}

// DefaultPolicy retries each line three times, waiting two seconds after
// transport failures.
func DefaultPolicy() retry.Policy {
	p := retry.Fixed(maxAttempts, retryDelay)
	p.DelayIf = isTransportFailure
	return p
}

// Synthesizer voices a script line by line. Lines that cannot be voiced
// are skipped with a warning.
type Synthesizer struct {
	provider Provider
	policy   retry.Policy
	logger   *slog.Logger
	// OnLine is called after each line is attempted.
	OnLine func(done, total int, line script.Line)
}

func NewSynthesizer(provider Provider, policy retry.Policy, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{provider: provider, policy: policy, logger: logger}
}

// SynthesizeAll writes one clip per voiced line into dir and returns them in
// playback order. It fails only when no line could be voiced.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, lines []script.Line, voices voice.Assignment, dir string) ([]Clip, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	var clips []Clip
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		clip, err := s.synthesizeLine(ctx, line, voices, dir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WarnContext(ctx, "skipping line",
				"index", line.Index,
				"speaker", line.Speaker,
				"error", err,
			)
		} else {
			clips = append(clips, clip)
		}

		if s.OnLine != nil {
			s.OnLine(i+1, len(lines), line)
		}
	}

	if len(clips) == 0 {
		return nil, ErrNoAudioGenerated
	}
	return clips, nil
}

func (s *Synthesizer) synthesizeLine(ctx context.Context, line script.Line, voices voice.Assignment, dir string) (Clip, error) {
	voiceID, ok := voices.Lookup(line.Speaker)
	if !ok {
		return Clip{}, fmt.Errorf("no voice assigned for speaker %q", line.Speaker)
	}

	policy := s.policy
	policy.OnRetry = func(attempt int, err error) {
		s.logger.WarnContext(ctx, "synthesis attempt failed",
			"index", line.Index,
			"speaker", line.Speaker,
			"attempt", attempt,
			"error", err,
		)
	}

	var audio []byte
	err := policy.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, SynthesisTimeout)
		defer cancel()
		data, err := s.provider.Synthesize(attemptCtx, line.Text, voiceID)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return ErrEmptyAudio
		}
		audio = data
		return nil
	})
	if err != nil {
		return Clip{}, fmt.Errorf("%s synthesis failed: %w", s.provider.Name(), err)
	}

	path := filepath.Join(dir, ClipName(line.Index, line.Speaker))
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return Clip{}, fmt.Errorf("write clip: %w", err)
	}
	return Clip{Index: line.Index, Speaker: line.Speaker, Path: path}, nil
}
