package script

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/panelcast/internal/brief"
)

func testBrief() *brief.Brief {
	return &brief.Brief{
		Topic:    "Coffee",
		Duration: 5,
		Speakers: []brief.Speaker{{Name: "Alex", Gender: brief.Male}},
	}
}

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req geminiTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Contents[0].Parts[0].Text, "about Coffee")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Alex: Hi\n"},{"text":"Alex: Bye"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGeminiGenerator("gemini-flash", "test-key", srv.URL)
	text, err := g.Generate(context.Background(), testBrief(), "")
	require.NoError(t, err)
	assert.Equal(t, "Alex: Hi\nAlex: Bye", text)
}

func TestGeminiClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGeminiGenerator("gemini-pro", "k", srv.URL)
	_, err := g.Generate(context.Background(), testBrief(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Equal(t, 1, calls)
}

func TestNewGeneratorUnknownModel(t *testing.T) {
	_, err := NewGenerator(context.Background(), "gpt-2", GeneratorOptions{})
	assert.Error(t, err)

	g, err := NewGenerator(context.Background(), "haiku", GeneratorOptions{AnthropicAPIKey: "x"})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeGenerator{}, g)
}
