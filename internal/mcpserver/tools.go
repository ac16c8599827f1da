package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/panelcast/internal/brief"
	"github.com/apresai/panelcast/internal/publish"
	"github.com/apresai/panelcast/internal/tts"
)

var tracer = otel.Tracer("panelcast-mcp")

var speakerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":        map[string]any{"type": "string"},
		"gender":      map[string]any{"type": "string", "enum": []string{"Male", "Female"}},
		"profession":  map[string]any{"type": "string"},
		"background":  map[string]any{"type": "string"},
		"personality": map[string]any{"type": "string"},
	},
	"required": []string{"name", "gender"},
}

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "generate_podcast",
			Description: "Write, voice and assemble a podcast episode for a topic and a cast of 1-5 speakers. Starts a background run and returns its ID. Use get_podcast to check progress. Only one run can be active at a time.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"topic": map[string]any{
						"type":        "string",
						"description": "What the episode is about",
					},
					"duration": map[string]any{
						"type":        "integer",
						"description": "Target length in minutes",
						"default":     10,
					},
					"setting": map[string]any{
						"type":        "string",
						"description": "Where the conversation takes place",
					},
					"source": map[string]any{
						"type":        "string",
						"description": "Optional background material: URL or local PDF/text path",
					},
					"speakers": map[string]any{
						"type":        "array",
						"description": "The cast, 1-5 speakers",
						"items":       speakerSchema,
					},
					"model": map[string]any{
						"type":        "string",
						"description": "Script generation model: haiku, sonnet, gemini-flash, gemini-pro, nova-lite",
					},
					"tts": map[string]any{
						"type":        "string",
						"description": "Text-to-speech provider: elevenlabs, google, polly",
					},
					"publish": map[string]any{
						"type":        "boolean",
						"description": "Publish when finished. Requires authorize_publisher first.",
						"default":     false,
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Published title (default: the topic)",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Published description",
					},
				},
				Required: []string{"topic", "speakers"},
			},
		},
		{
			Name:        "get_podcast",
			Description: "Get the status of the current or most recent run: stage, progress, and the file path once complete.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
		{
			Name:        "list_voices",
			Description: "List the voice pools each TTS provider draws from.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"tts": map[string]any{
						"type":        "string",
						"description": "Only this provider (default: all)",
					},
				},
			},
		},
		{
			Name:        "authorize_publisher",
			Description: "Without a code, returns the URL where the user grants publish access. With the code from that page's redirect, exchanges it for a token held for this server session.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"code": map[string]any{
						"type":        "string",
						"description": "Authorization code from the redirect",
					},
				},
			},
		},
		{
			Name:        "publish_podcast",
			Description: "Upload the last finished episode (or a given MP3) to the podcast host using the session token.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"file": map[string]any{
						"type":        "string",
						"description": "MP3 path (default: the last generated episode)",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Episode title",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Episode description",
					},
					"draft": map[string]any{
						"type":        "boolean",
						"description": "Upload as draft",
						"default":     false,
					},
				},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	runs       *RunManager
	authorizer *publish.Authorizer
	publisher  *publish.Publisher
	defaults   Config
	log        *slog.Logger
}

// NewHandlers creates tool handlers. authorizer and publisher may be nil
// when publishing is not configured.
func NewHandlers(runs *RunManager, authorizer *publish.Authorizer, publisher *publish.Publisher, defaults Config, logger *slog.Logger) *Handlers {
	return &Handlers{runs: runs, authorizer: authorizer, publisher: publisher, defaults: defaults, log: logger}
}

// HandleGeneratePodcast starts a run.
func (h *Handlers) HandleGeneratePodcast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.generate_podcast")
	defer span.End()

	speakers, err := parseSpeakers(req)
	if err != nil {
		span.SetStatus(codes.Error, "bad speakers")
		return mcp.NewToolResultError(err.Error()), nil
	}
	genReq := GenerateRequest{
		Brief: &brief.Brief{
			Topic:    mcp.ParseString(req, "topic", ""),
			Duration: parseIntParam(req, "duration", 10),
			Setting:  mcp.ParseString(req, "setting", ""),
			Source:   mcp.ParseString(req, "source", ""),
			Speakers: speakers,
		},
		Model:       mcp.ParseString(req, "model", h.defaults.Model),
		TTS:         mcp.ParseString(req, "tts", h.defaults.TTS),
		Publish:     mcp.ParseBoolean(req, "publish", false),
		Title:       mcp.ParseString(req, "title", ""),
		Description: mcp.ParseString(req, "description", ""),
	}

	span.SetAttributes(
		attribute.String("topic", genReq.Brief.Topic),
		attribute.String("model", genReq.Model),
		attribute.String("tts", genReq.TTS),
		attribute.Int("duration", genReq.Brief.Duration),
		attribute.Int("speakers", len(speakers)),
	)

	id, err := h.runs.Start(ctx, genReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start run failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to start: %v", err)), nil
	}

	span.SetAttributes(attribute.String("podcast_id", id))
	h.log.InfoContext(ctx, "Podcast generation started", "podcast_id", id, "model", genReq.Model, "tts", genReq.TTS)

	return jsonResult(map[string]any{
		"podcast_id": id,
		"status":     RunRunning,
		"message":    "Podcast generation started. Use get_podcast to check progress.",
	})
}

// HandleGetPodcast reports the current or most recent run.
func (h *Handlers) HandleGetPodcast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.get_podcast")
	defer span.End()

	st, ok := h.runs.Status()
	if !ok {
		return mcp.NewToolResultError("no podcast has been generated in this session"), nil
	}
	span.SetAttributes(attribute.String("podcast_id", st.ID), attribute.String("status", string(st.Status)))
	return jsonResult(st)
}

// HandleListVoices lists voice pools.
func (h *Handlers) HandleListVoices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.list_voices")
	defer span.End()

	names := tts.ProviderNames()
	if only := mcp.ParseString(req, "tts", ""); only != "" {
		names = []string{only}
	}

	result := map[string]any{}
	for _, name := range names {
		voices, err := tts.AvailableVoices(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		list := make([]map[string]string, 0, len(voices))
		for _, v := range voices {
			list = append(list, map[string]string{
				"id":          v.ID,
				"name":        v.Name,
				"gender":      v.Gender,
				"description": v.Description,
			})
		}
		result[name] = list
	}
	return jsonResult(result)
}

// HandleAuthorizePublisher returns the consent URL or exchanges a code.
func (h *Handlers) HandleAuthorizePublisher(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.authorize_publisher")
	defer span.End()

	if h.authorizer == nil {
		return mcp.NewToolResultError("publishing is not configured: set PODBEAN_CLIENT_ID and PODBEAN_CLIENT_SECRET"), nil
	}

	code := mcp.ParseString(req, "code", "")
	if code == "" {
		return jsonResult(map[string]any{
			"authorize_url": h.authorizer.AuthCodeURL(ulid.Make().String()),
			"message":       "Open this URL, approve access, then call authorize_publisher with the code from the redirect.",
		})
	}

	if err := h.runs.Authorize(ctx, h.authorizer, code); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exchange failed")
		return mcp.NewToolResultError(fmt.Sprintf("authorization failed: %v", err)), nil
	}
	h.log.InfoContext(ctx, "Publisher authorized")
	return jsonResult(map[string]any{"authorized": true})
}

// HandlePublishPodcast uploads an episode with the session token.
func (h *Handlers) HandlePublishPodcast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.publish_podcast")
	defer span.End()

	if h.publisher == nil {
		return mcp.NewToolResultError("publishing is not configured"), nil
	}

	ep := publish.Episode{
		Title:       mcp.ParseString(req, "title", ""),
		Description: mcp.ParseString(req, "description", ""),
		Explicit:    h.defaults.Explicit,
	}
	if mcp.ParseBoolean(req, "draft", false) {
		ep.Status = "draft"
	}

	res, err := h.runs.Publish(ctx, h.publisher, mcp.ParseString(req, "file", ""), ep)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		if errors.Is(err, publish.ErrNotAuthorized) {
			return mcp.NewToolResultError("not authorized: call authorize_publisher first"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("publish failed: %v", err)), nil
	}

	span.SetAttributes(attribute.String("episode_id", res.EpisodeID))
	return jsonResult(map[string]any{
		"episode_id":    res.EpisodeID,
		"permalink_url": res.PermalinkURL,
		"status_code":   res.StatusCode,
	})
}

func parseSpeakers(req mcp.CallToolRequest) ([]brief.Speaker, error) {
	raw, ok := req.GetArguments()["speakers"]
	if !ok {
		return nil, errors.New("speakers is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("speakers: %w", err)
	}
	var speakers []brief.Speaker
	if err := json.Unmarshal(data, &speakers); err != nil {
		return nil, fmt.Errorf("speakers must be a list of {name, gender, ...}: %w", err)
	}
	return speakers, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}
