package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/apresai/panelcast/internal/retry"
)

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io/v1"
	elevenLabsModelID        = "eleven_multilingual_v2"
	elevenLabsOutputFormat   = "mp3_44100_128"
)

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Same settings for every line so voices stay consistent across a run.
var elevenLabsSettings = elevenLabsVoiceParams{
	Stability:       0.7,
	SimilarityBoost: 0.8,
	Style:           0.0,
	UseSpeakerBoost: true,
}

// ElevenLabsProvider implements Provider using the ElevenLabs TTS API.
type ElevenLabsProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewElevenLabsProvider creates a provider. Empty apiKey and baseURL fall
// back to ELEVENLABS_API_KEY and the public endpoint.
func NewElevenLabsProvider(apiKey, baseURL string) *ElevenLabsProvider {
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if baseURL == "" {
		baseURL = elevenLabsDefaultBaseURL
	}
	return &ElevenLabsProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: SynthesisTimeout},
	}
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	settings := elevenLabsSettings
	bodyBytes, err := json.Marshal(elevenLabsRequest{
		Text:          text,
		ModelID:       elevenLabsModelID,
		VoiceSettings: &settings,
	})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", p.baseURL, voiceID, elevenLabsOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(errBody)}
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}

func (p *ElevenLabsProvider) Close() error { return nil }

var elevenLabsVoices = []VoiceInfo{
	{ID: "YmpzixbkOaQ7t3lmyaRe", Gender: "male", Description: "Conversational male"},
	{ID: "wViXBPUzp2ZZixB1xQuM", Gender: "male", Description: "Warm male narrator"},
	{ID: "TxGEqnHWrfWFTfGW9XjX", Name: "Josh", Gender: "male", Description: "Young American male, deep and smooth"},
	{ID: "XcXEQzuLXRU9RcfWzEJt", Gender: "female", Description: "Bright female"},
	{ID: "ADd2WEtjmwokqUr0Y5Ad", Gender: "female", Description: "Calm female narrator"},
	{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi", Gender: "female", Description: "Strong, confident female"},
}
