package script

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apresai/panelcast/internal/brief"
)

// Generator writes a free-text multi-speaker script for a brief.
// background is optional source material the conversation should draw on.
type Generator interface {
	Generate(ctx context.Context, b *brief.Brief, background string) (string, error)
}

// ModelNames lists the accepted --model values.
func ModelNames() []string {
	return []string{"haiku", "sonnet", "gemini-flash", "gemini-pro", "nova-lite"}
}

// GeneratorOptions carries credentials the generators cannot pick up from
// their SDK defaults.
type GeneratorOptions struct {
	AnthropicAPIKey string
	GeminiAPIKey    string
	GeminiBaseURL   string
}

// NewGenerator returns the generator for a model name.
func NewGenerator(ctx context.Context, model string, opts GeneratorOptions) (Generator, error) {
	switch {
	case claudeModels[model] != "":
		return NewClaudeGenerator(model, opts.AnthropicAPIKey), nil
	case geminiModels[model] != "":
		return NewGeminiGenerator(model, opts.GeminiAPIKey, opts.GeminiBaseURL), nil
	case novaModels[model] != "":
		return NewNovaGenerator(ctx, model)
	default:
		return nil, fmt.Errorf("unknown script model %q: choose %s", model, strings.Join(ModelNames(), ", "))
	}
}

// SaveScript writes script text to path.
func SaveScript(text, path string) error {
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write script to %s: %w", path, err)
	}
	return nil
}

// LoadScript reads script text previously written by SaveScript or by hand.
func LoadScript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script from %s: %w", path, err)
	}
	return string(data), nil
}
