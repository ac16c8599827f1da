package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/apresai/panelcast/internal/brief"
	"github.com/apresai/panelcast/internal/retry"
)

var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.5-flash",
	"gemini-pro":   "gemini-2.5-pro",
}

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiGenerator struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiGenerator creates a generator against the Gemini REST API.
// Empty apiKey and baseURL fall back to GEMINI_API_KEY and the public endpoint.
func NewGeminiGenerator(model, apiKey, baseURL string) *GeminiGenerator {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &GeminiGenerator{
		model:      model,
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type geminiTextRequest struct {
	SystemInstruction *geminiTextContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiTextContent `json:"contents"`
	GenerationConfig  *geminiTextGenCfg   `json:"generationConfig,omitempty"`
}

type geminiTextContent struct {
	Parts []geminiTextPart `json:"parts"`
}

type geminiTextPart struct {
	Text string `json:"text"`
}

type geminiTextGenCfg struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int64   `json:"maxOutputTokens"`
}

type geminiTextResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiTextPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiGenerator) Generate(ctx context.Context, b *brief.Brief, background string) (string, error) {
	modelID := geminiModels[g.model]
	if modelID == "" {
		modelID = geminiModels["gemini-flash"]
	}

	reqBody := geminiTextRequest{
		SystemInstruction: &geminiTextContent{
			Parts: []geminiTextPart{{Text: systemPrompt}},
		},
		Contents: []geminiTextContent{
			{Parts: []geminiTextPart{{Text: buildUserPrompt(b, background)}}},
		},
		GenerationConfig: &geminiTextGenCfg{
			Temperature:     temperature,
			MaxOutputTokens: maxTokensForDuration(b.Duration),
		},
	}

	var text string
	err := generationPolicy.Do(ctx, func(ctx context.Context) error {
		out, err := g.doRequest(ctx, modelID, reqBody)
		if err != nil {
			return fmt.Errorf("Gemini API error: %w", err)
		}
		text = cleanResponse(out)
		if text == "" {
			return fmt.Errorf("Gemini: %w", errEmptyResponse)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *GeminiGenerator) doRequest(ctx context.Context, modelID string, reqBody geminiTextRequest) (string, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("retryable error (status %d): %s", res.StatusCode, string(respBody))
	}
	if res.StatusCode != http.StatusOK {
		return "", retry.Permanent(fmt.Errorf("status %d: %s", res.StatusCode, string(respBody)))
	}

	var resp geminiTextResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	for _, p := range resp.Candidates[0].Content.Parts {
		buf.WriteString(p.Text)
	}
	return buf.String(), nil
}
