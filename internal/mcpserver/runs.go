package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/panelcast/internal/brief"
	"github.com/apresai/panelcast/internal/observability"
	"github.com/apresai/panelcast/internal/pipeline"
	"github.com/apresai/panelcast/internal/progress"
	"github.com/apresai/panelcast/internal/publish"
)

// ErrBusy is returned when a run or upload is already using the working
// directory. Requests are rejected, not queued.
var ErrBusy = errors.New("a podcast is already being generated or published")

// BuildFunc creates the collaborators for one run.
type BuildFunc func(ctx context.Context, model, provider string, publishing bool) (pipeline.Deps, func(), error)

// GenerateRequest holds parameters for a podcast generation run.
type GenerateRequest struct {
	Brief       *brief.Brief
	Model       string
	TTS         string
	Publish     bool
	Title       string
	Description string
}

type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// RunState is the in-memory record of the current or most recent run.
type RunState struct {
	ID           string         `json:"podcast_id"`
	Status       RunStatus      `json:"status"`
	Stage        progress.Stage `json:"stage,omitempty"`
	Percent      float64        `json:"progress_percent"`
	Message      string         `json:"stage_message,omitempty"`
	Topic        string         `json:"topic"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	FinalPath    string         `json:"file,omitempty"`
	Duration     string         `json:"duration,omitempty"`
	SizeMB       float64        `json:"file_size_mb,omitempty"`
	Skipped      int            `json:"skipped_lines,omitempty"`
	PermalinkURL string         `json:"permalink_url,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// RunManager allows one run at a time over a shared working directory and
// holds the publish session for the life of the server.
type RunManager struct {
	build   BuildFunc
	cfg     Config
	session *publish.Session
	log     *slog.Logger
	baseCtx context.Context // cancelled on shutdown

	busy sync.Mutex

	mu      sync.Mutex
	current *RunState
	done    chan struct{}
}

func NewRunManager(baseCtx context.Context, cfg Config, build BuildFunc, session *publish.Session, logger *slog.Logger) *RunManager {
	if session == nil {
		session = &publish.Session{}
	}
	return &RunManager{
		build:   build,
		cfg:     cfg,
		session: session,
		log:     logger,
		baseCtx: baseCtx,
	}
}

// Start validates the request, builds collaborators and launches the run in
// the background. It returns the run id immediately.
func (rm *RunManager) Start(ctx context.Context, req GenerateRequest) (string, error) {
	if req.Brief == nil {
		return "", brief.ErrNoTopic
	}
	if err := req.Brief.Validate(); err != nil {
		return "", err
	}
	if req.Publish && !rm.session.Authorized() {
		return "", fmt.Errorf("%w: call authorize_publisher first", publish.ErrNotAuthorized)
	}
	if !rm.busy.TryLock() {
		return "", ErrBusy
	}

	deps, closeDeps, err := rm.build(ctx, req.Model, req.TTS, req.Publish)
	if closeDeps == nil {
		closeDeps = func() {}
	}
	if err != nil {
		closeDeps()
		rm.busy.Unlock()
		return "", err
	}

	id := ulid.Make().String()
	state := &RunState{ID: id, Status: RunRunning, Topic: req.Brief.Topic, StartedAt: time.Now()}
	done := make(chan struct{})
	rm.mu.Lock()
	rm.current = state
	rm.done = done
	rm.mu.Unlock()

	// The run outlives the tool call but stays on the caller's trace.
	runCtx := observability.DetachTraceContextFrom(ctx, rm.baseCtx)

	deps.Session = rm.session
	deps.Progress = rm.track
	opts := pipeline.Options{
		RunID:   id,
		Brief:   req.Brief,
		WorkDir: rm.cfg.WorkDir,
		Artist:  rm.cfg.Artist,
	}
	if req.Publish {
		opts.Publish = &pipeline.PublishOptions{
			Title:       req.Title,
			Description: req.Description,
			Status:      rm.cfg.PublishStatus,
			Explicit:    rm.cfg.Explicit,
		}
	}

	go func() {
		defer close(done)
		defer rm.busy.Unlock()
		defer closeDeps()
		rm.run(runCtx, deps, opts)
	}()
	return id, nil
}

func (rm *RunManager) run(ctx context.Context, deps pipeline.Deps, opts pipeline.Options) {
	ctx, span := tracer.Start(ctx, "mcp.run", trace.WithAttributes(attribute.String("podcast_id", opts.RunID)))
	defer span.End()
	log := rm.log.With("podcast_id", opts.RunID)

	log.InfoContext(ctx, "run starting", "topic", opts.Brief.Topic, "speakers", len(opts.Brief.Speakers))
	rc, err := pipeline.New(deps).Run(ctx, opts)

	rm.mu.Lock()
	defer rm.mu.Unlock()
	now := time.Now()
	st := rm.current
	st.FinishedAt = &now
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		log.ErrorContext(ctx, "run failed", "error", err)
		st.Status = RunFailed
		st.Error = err.Error()
		if rc != nil {
			st.FinalPath = rc.FinalPath
		}
		return
	}
	st.Status = RunComplete
	st.Percent = 1
	st.FinalPath = rc.FinalPath
	st.Duration = rc.Duration
	st.SizeMB = rc.SizeMB
	st.Skipped = rc.Skipped
	if rc.Published != nil {
		st.PermalinkURL = rc.Published.PermalinkURL
	}
	log.InfoContext(ctx, "run complete", "file", rc.FinalPath, "skipped", rc.Skipped)
}

func (rm *RunManager) track(e progress.Event) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.current == nil || rm.current.Status != RunRunning {
		return
	}
	rm.current.Stage = e.Stage
	rm.current.Percent = e.Percent
	rm.current.Message = e.Message
}

// Status returns a copy of the current or most recent run.
func (rm *RunManager) Status() (RunState, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.current == nil {
		return RunState{}, false
	}
	return *rm.current, true
}

// Wait blocks until the current run finishes or ctx is done.
func (rm *RunManager) Wait(ctx context.Context) error {
	rm.mu.Lock()
	done := rm.done
	rm.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Authorize exchanges a code and keeps the token for later uploads.
func (rm *RunManager) Authorize(ctx context.Context, a *publish.Authorizer, code string) error {
	return rm.session.Authorize(ctx, a, code)
}

// Publish uploads path, or the last completed run's episode when path is
// empty. It shares the run lock so an upload never reads a half-written
// file.
func (rm *RunManager) Publish(ctx context.Context, p *publish.Publisher, path string, ep publish.Episode) (*publish.Result, error) {
	if !rm.busy.TryLock() {
		return nil, ErrBusy
	}
	defer rm.busy.Unlock()

	if path == "" {
		st, ok := rm.Status()
		if !ok || st.Status != RunComplete {
			return nil, errors.New("no finished podcast to publish; generate one first or pass a file")
		}
		path = st.FinalPath
		if ep.Title == "" {
			ep.Title = st.Topic
		}
	}
	ep.Path = path
	if ep.Status == "" {
		ep.Status = rm.cfg.PublishStatus
	}
	res, err := p.Publish(ctx, rm.session, ep)
	if err != nil {
		return nil, err
	}

	rm.mu.Lock()
	if rm.current != nil && rm.current.FinalPath == path {
		rm.current.PermalinkURL = res.PermalinkURL
	}
	rm.mu.Unlock()
	return res, nil
}
