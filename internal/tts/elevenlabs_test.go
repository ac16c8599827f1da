package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/text-to-speech/voice123", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))

		var req elevenLabsRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "Hello there", req.Text)
			assert.Equal(t, "eleven_multilingual_v2", req.ModelID)
			assert.Equal(t, 0.7, req.VoiceSettings.Stability)
			assert.Equal(t, 0.8, req.VoiceSettings.SimilarityBoost)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	p := NewElevenLabsProvider("secret", srv.URL)
	data, err := p.Synthesize(context.Background(), "Hello there", "voice123")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), data)
}

func TestElevenLabsStatusAndEmptyBody(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"detail":"rate limited"}`))
		}
	}))
	defer srv.Close()

	p := NewElevenLabsProvider("k", srv.URL)
	_, err := p.Synthesize(context.Background(), "x", "v")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Contains(t, se.Body, "rate limited")

	status = http.StatusOK
	_, err = p.Synthesize(context.Background(), "x", "v")
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestElevenLabsAcceptsAny2xx(t *testing.T) {
	status := http.StatusCreated
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status != http.StatusNoContent {
			_, _ = w.Write([]byte("ID3audio"))
		}
	}))
	defer srv.Close()

	p := NewElevenLabsProvider("k", srv.URL)
	data, err := p.Synthesize(context.Background(), "x", "v")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), data)

	status = http.StatusNoContent
	_, err = p.Synthesize(context.Background(), "x", "v")
	assert.ErrorIs(t, err, ErrEmptyAudio)

	status = http.StatusMultipleChoices
	_, err = p.Synthesize(context.Background(), "x", "v")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusMultipleChoices, se.StatusCode)
}
