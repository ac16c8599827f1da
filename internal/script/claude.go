package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/apresai/panelcast/internal/brief"
	"github.com/apresai/panelcast/internal/retry"
)

var claudeModels = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

var errEmptyResponse = errors.New("empty response")

// generationPolicy is shared by all script generators.
var generationPolicy = retry.Backoff(3, 1*time.Second, 10*time.Second)

type ClaudeGenerator struct {
	model  string
	apiKey string
}

// NewClaudeGenerator creates a generator. An empty apiKey falls back to
// ANTHROPIC_API_KEY via the SDK.
func NewClaudeGenerator(model, apiKey string) *ClaudeGenerator {
	return &ClaudeGenerator{model: model, apiKey: apiKey}
}

func (g *ClaudeGenerator) Generate(ctx context.Context, b *brief.Brief, background string) (string, error) {
	var opts []option.RequestOption
	if g.apiKey != "" {
		opts = append(opts, option.WithAPIKey(g.apiKey))
	}
	client := anthropic.NewClient(opts...)

	modelID := claudeModels[g.model]
	if modelID == "" {
		modelID = claudeModels["haiku"]
	}
	userPrompt := buildUserPrompt(b, background)

	var text string
	err := generationPolicy.Do(ctx, func(ctx context.Context) error {
		message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(modelID),
			MaxTokens:   maxTokensForDuration(b.Duration),
			Temperature: anthropic.Float(temperature),
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
		})
		if err != nil {
			return fmt.Errorf("Claude API error: %w", err)
		}
		text = cleanResponse(extractText(message))
		if text == "" {
			return fmt.Errorf("Claude: %w", errEmptyResponse)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
