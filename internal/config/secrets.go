package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// SecretGetter is the part of the Secrets Manager client used here.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewSecretsClient creates a Secrets Manager client from the default AWS
// credential chain.
func NewSecretsClient(ctx context.Context, region string) (*secretsmanager.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return secretsmanager.NewFromConfig(awsCfg), nil
}

// FillSecrets fetches every empty credential from Secrets Manager under
// prefix + vendor variable name. Values already set are never overridden
// and a missing secret is not an error.
func (c *Config) FillSecrets(ctx context.Context, client SecretGetter, logger *slog.Logger) int {
	if c.Secrets.Prefix == "" {
		return 0
	}
	targets := []struct {
		name string
		dst  *string
	}{
		{"ANTHROPIC_API_KEY", &c.Script.AnthropicAPIKey},
		{"GEMINI_API_KEY", &c.Script.GeminiAPIKey},
		{"ELEVENLABS_API_KEY", &c.TTS.ElevenLabsAPIKey},
		{"PODBEAN_CLIENT_ID", &c.Publish.ClientID},
		{"PODBEAN_CLIENT_SECRET", &c.Publish.ClientSecret},
	}

	loaded := 0
	for _, t := range targets {
		if *t.dst != "" {
			continue
		}
		secretID := c.Secrets.Prefix + t.name
		out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretID),
		})
		if err != nil {
			logger.Debug("secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if out.SecretString != nil && *out.SecretString != "" {
			*t.dst = *out.SecretString
			loaded++
			logger.Info("loaded secret", "secret_id", secretID)
		}
	}
	return loaded
}
