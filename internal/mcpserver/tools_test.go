package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/panelcast/internal/assembly"
	"github.com/apresai/panelcast/internal/brief"
	"github.com/apresai/panelcast/internal/pipeline"
	"github.com/apresai/panelcast/internal/publish"
	"github.com/apresai/panelcast/internal/retry"
	"github.com/apresai/panelcast/internal/voice"
)

type scriptedGenerator struct {
	release chan struct{}
}

func (g scriptedGenerator) Generate(ctx context.Context, b *brief.Brief, background string) (string, error) {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "Alex: Hello there.\nMaya: Hi Alex.", nil
}

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }
func (echoProvider) Close() error { return nil }
func (echoProvider) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	return []byte(text), nil
}

// joinAssembler concatenates the clips without ffmpeg.
type joinAssembler struct{}

func (joinAssembler) Assemble(ctx context.Context, dir string, meta assembly.Metadata) (string, error) {
	clips, err := assembly.ListClips(dir)
	if err != nil {
		return "", err
	}
	if len(clips) == 0 {
		return "", assembly.ErrNoClips
	}
	var out []byte
	for _, c := range clips {
		data, err := os.ReadFile(filepath.Join(dir, c.Name))
		if err != nil {
			return "", err
		}
		out = append(out, data...)
	}
	final := filepath.Join(dir, assembly.FinalName)
	return final, os.WriteFile(final, out, 0644)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildFake(gen scriptedGenerator, pub *publish.Publisher) BuildFunc {
	return func(ctx context.Context, model, provider string, publishing bool) (pipeline.Deps, func(), error) {
		deps := pipeline.Deps{
			Generator: gen,
			Provider:  echoProvider{},
			Pools:     voice.Pools{Male: []string{"m1"}, Female: []string{"f1"}},
			Assembler: joinAssembler{},
			Policy:    retry.Fixed(1, 0),
			Logger:    quietLogger(),
			Probe:     func(context.Context, string) string { return "0:05" },
		}
		if publishing {
			deps.Publisher = pub
		}
		return deps, func() {}, nil
	}
}

func newTestServer(t *testing.T, gen scriptedGenerator, podbean *httptest.Server) *Server {
	t.Helper()
	var a *publish.Authorizer
	var p *publish.Publisher
	if podbean != nil {
		a = publish.NewAuthorizer(publish.OAuthConfig{ClientID: "cid", ClientSecret: "sec", TokenURL: podbean.URL + "/token"})
		p = publish.NewPublisher(podbean.URL + "/episodes")
	}
	cfg := Config{WorkDir: t.TempDir(), Model: "haiku", TTS: "elevenlabs", PublishStatus: "publish"}
	return New(context.Background(), cfg, buildFake(gen, p), a, p, quietLogger())
}

func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := fn(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var body map[string]any
	if !res.IsError {
		require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	} else {
		body = map[string]any{"error": text.Text}
	}
	return res, body
}

func generateArgs() map[string]any {
	return map[string]any{
		"topic":    "Fusion",
		"duration": float64(5),
		"speakers": []any{
			map[string]any{"name": "Alex Chen", "gender": "male"},
			map[string]any{"name": "Maya Patel", "gender": "Female", "profession": "Physicist"},
		},
	}
}

func waitDone(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestGenerateAndGetPodcast(t *testing.T) {
	s := newTestServer(t, scriptedGenerator{}, nil)

	res, body := call(t, s.handlers.HandleGeneratePodcast, generateArgs())
	require.False(t, res.IsError, body["error"])
	id := body["podcast_id"].(string)
	require.NotEmpty(t, id)

	waitDone(t, s)

	res, body = call(t, s.handlers.HandleGetPodcast, nil)
	require.False(t, res.IsError)
	assert.Equal(t, id, body["podcast_id"])
	assert.Equal(t, string(RunComplete), body["status"])
	assert.Equal(t, "0:05", body["duration"])

	data, err := os.ReadFile(body["file"].(string))
	require.NoError(t, err)
	assert.Equal(t, "Hello there.Hi Alex.", string(data))
}

func TestGenerateRejectsSecondRun(t *testing.T) {
	release := make(chan struct{})
	s := newTestServer(t, scriptedGenerator{release: release}, nil)

	res, _ := call(t, s.handlers.HandleGeneratePodcast, generateArgs())
	require.False(t, res.IsError)

	res, body := call(t, s.handlers.HandleGeneratePodcast, generateArgs())
	assert.True(t, res.IsError)
	assert.Contains(t, body["error"], "already being generated")

	close(release)
	waitDone(t, s)

	res, _ = call(t, s.handlers.HandleGeneratePodcast, generateArgs())
	assert.False(t, res.IsError, "lock is released after the run")
	waitDone(t, s)
}

func TestGenerateValidatesBrief(t *testing.T) {
	s := newTestServer(t, scriptedGenerator{}, nil)

	args := generateArgs()
	args["speakers"] = []any{}
	res, _ := call(t, s.handlers.HandleGeneratePodcast, args)
	assert.True(t, res.IsError)

	args = generateArgs()
	delete(args, "speakers")
	res, body := call(t, s.handlers.HandleGeneratePodcast, args)
	assert.True(t, res.IsError)
	assert.Contains(t, body["error"], "speakers")

	_, ok := s.runs.Status()
	assert.False(t, ok)
}

func TestGetPodcastBeforeAnyRun(t *testing.T) {
	s := newTestServer(t, scriptedGenerator{}, nil)
	res, _ := call(t, s.handlers.HandleGetPodcast, nil)
	assert.True(t, res.IsError)
}

func TestListVoices(t *testing.T) {
	s := newTestServer(t, scriptedGenerator{}, nil)

	res, body := call(t, s.handlers.HandleListVoices, map[string]any{"tts": "polly"})
	require.False(t, res.IsError)
	assert.Contains(t, body, "polly")
	assert.NotContains(t, body, "elevenlabs")

	res, _ = call(t, s.handlers.HandleListVoices, map[string]any{"tts": "nope"})
	assert.True(t, res.IsError)
}

func fakePodbean(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "ok" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/episodes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseMultipartForm(1 << 20)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"episode":{"id":"E9","permalink_url":"https://host/e9"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthorizeAndPublish(t *testing.T) {
	s := newTestServer(t, scriptedGenerator{}, fakePodbean(t))

	res, body := call(t, s.handlers.HandleAuthorizePublisher, nil)
	require.False(t, res.IsError)
	assert.Contains(t, body["authorize_url"], "client_id=cid")

	res, _ = call(t, s.handlers.HandlePublishPodcast, nil)
	assert.True(t, res.IsError, "nothing generated yet")

	res, _ = call(t, s.handlers.HandleAuthorizePublisher, map[string]any{"code": "bad"})
	assert.True(t, res.IsError)

	args := generateArgs()
	args["publish"] = true
	res, _ = call(t, s.handlers.HandleGeneratePodcast, args)
	assert.True(t, res.IsError, "publishing needs authorization first")

	res, body = call(t, s.handlers.HandleAuthorizePublisher, map[string]any{"code": "ok"})
	require.False(t, res.IsError)
	assert.Equal(t, true, body["authorized"])

	res, _ = call(t, s.handlers.HandleGeneratePodcast, args)
	require.False(t, res.IsError)
	waitDone(t, s)

	st, ok := s.runs.Status()
	require.True(t, ok)
	require.Equal(t, RunComplete, st.Status, st.Error)
	assert.Equal(t, "https://host/e9", st.PermalinkURL)

	res, body = call(t, s.handlers.HandlePublishPodcast, map[string]any{"title": "Again"})
	require.False(t, res.IsError, body["error"])
	assert.Equal(t, "E9", body["episode_id"])
}

func TestPublishWithoutAuthorization(t *testing.T) {
	s := newTestServer(t, scriptedGenerator{}, fakePodbean(t))
	call(t, s.handlers.HandleGeneratePodcast, generateArgs())
	waitDone(t, s)

	res, body := call(t, s.handlers.HandlePublishPodcast, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, body["error"], "not authorized")
}

func TestPublishingNotConfigured(t *testing.T) {
	s := newTestServer(t, scriptedGenerator{}, nil)
	res, _ := call(t, s.handlers.HandleAuthorizePublisher, map[string]any{"code": "x"})
	assert.True(t, res.IsError)
	res, _ = call(t, s.handlers.HandlePublishPodcast, nil)
	assert.True(t, res.IsError)
}
