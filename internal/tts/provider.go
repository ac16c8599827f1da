package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apresai/panelcast/internal/voice"
)

// Provider turns one line of text into MP3 bytes with the given voice.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error)
	Close() error
}

// ErrEmptyAudio is returned when a provider answers successfully with no audio.
var ErrEmptyAudio = errors.New("provider returned empty audio")

// StatusError is a non-2xx answer from a synthesis endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// isTransportFailure reports whether err happened before any answer was
// received. Only those failures wait before the next attempt.
func isTransportFailure(err error) bool {
	var se *StatusError
	return !errors.As(err, &se) && !errors.Is(err, ErrEmptyAudio)
}

// VoiceInfo describes a voice in a provider's pools.
type VoiceInfo struct {
	ID          string
	Name        string
	Gender      string
	Description string
}

// ProviderNames lists the accepted --tts values.
func ProviderNames() []string {
	return []string{"elevenlabs", "google", "polly"}
}

// AvailableVoices returns the voice pools for the named provider.
func AvailableVoices(providerName string) ([]VoiceInfo, error) {
	switch providerName {
	case "elevenlabs":
		return elevenLabsVoices, nil
	case "google":
		return googleVoices, nil
	case "polly":
		return pollyVoices, nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose %s", providerName, strings.Join(ProviderNames(), ", "))
	}
}

// PoolsFor splits a provider's voices into gender pools for voice assignment.
func PoolsFor(providerName string) (voice.Pools, error) {
	voices, err := AvailableVoices(providerName)
	if err != nil {
		return voice.Pools{}, err
	}
	var p voice.Pools
	for _, v := range voices {
		switch v.Gender {
		case "male":
			p.Male = append(p.Male, v.ID)
		case "female":
			p.Female = append(p.Female, v.ID)
		}
	}
	return p, nil
}

// Config carries provider credentials and endpoints.
type Config struct {
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
}

// NewProvider creates a TTS provider by name.
func NewProvider(ctx context.Context, name string, cfg Config) (Provider, error) {
	switch name {
	case "elevenlabs":
		return NewElevenLabsProvider(cfg.ElevenLabsAPIKey, cfg.ElevenLabsBaseURL), nil
	case "google":
		return NewGoogleProvider(ctx)
	case "polly":
		return NewPollyProvider(ctx)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose %s", name, strings.Join(ProviderNames(), ", "))
	}
}
