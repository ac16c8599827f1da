package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// PollyProvider implements Provider using AWS Polly (neural engine).
type PollyProvider struct {
	client *polly.Client
}

func NewPollyProvider(ctx context.Context) (*PollyProvider, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for Polly: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return &PollyProvider{client: polly.NewFromConfig(awsCfg)}, nil
}

func (p *PollyProvider) Name() string { return "polly" }

func (p *PollyProvider) Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	resp, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       types.EngineNeural,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   aws.String("24000"),
		Text:         aws.String(text),
		TextType:     types.TextTypeText,
		VoiceId:      types.VoiceId(voiceID),
		LanguageCode: types.LanguageCodeEnUs,
	})
	if err != nil {
		return nil, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("Polly read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}

func (p *PollyProvider) Close() error { return nil }

var pollyVoices = []VoiceInfo{
	{ID: "Matthew", Name: "Matthew", Gender: "male", Description: "en-US, Neural"},
	{ID: "Stephen", Name: "Stephen", Gender: "male", Description: "en-US, Neural"},
	{ID: "Joey", Name: "Joey", Gender: "male", Description: "en-US, Neural"},
	{ID: "Joanna", Name: "Joanna", Gender: "female", Description: "en-US, Neural"},
	{ID: "Ruth", Name: "Ruth", Gender: "female", Description: "en-US, Neural"},
	{ID: "Danielle", Name: "Danielle", Gender: "female", Description: "en-US, Neural"},
}
