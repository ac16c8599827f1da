// Package pipeline runs one podcast from brief to published episode.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/panelcast/internal/assembly"
	"github.com/apresai/panelcast/internal/brief"
	"github.com/apresai/panelcast/internal/ingest"
	"github.com/apresai/panelcast/internal/progress"
	"github.com/apresai/panelcast/internal/publish"
	"github.com/apresai/panelcast/internal/retry"
	"github.com/apresai/panelcast/internal/script"
	"github.com/apresai/panelcast/internal/tts"
	"github.com/apresai/panelcast/internal/voice"
)

var tracer = otel.Tracer("panelcast/pipeline")

var ErrScriptGeneration = errors.New("script generation failed")

type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func stageErr(stage progress.Stage, msg string, err error) error {
	return &PipelineError{Stage: string(stage), Message: msg, Err: err}
}

// PublishOptions enables the publish stage.
type PublishOptions struct {
	// AuthCode is exchanged for a token before any audio work starts. It may
	// be empty when the session already holds a token.
	AuthCode    string
	Title       string
	Description string
	Status      string
	Explicit    bool
}

type Options struct {
	// RunID identifies the run in logs and traces. A ULID is generated when
	// empty.
	RunID string
	Brief *brief.Brief
	// WorkDir holds per-line clips, the manifest and the final artifact.
	WorkDir string
	// ScriptOnly stops after writing the generated script to ScriptPath.
	ScriptOnly bool
	ScriptPath string
	// FromScript reuses a script file instead of generating one.
	FromScript string
	// Output, when set, receives a copy of the final artifact.
	Output  string
	Artist  string
	Publish *PublishOptions
}

// Deps are the collaborators a Runner drives. Generator is optional when
// every run uses FromScript; Authorizer, Publisher and Session are only
// needed for runs that publish.
type Deps struct {
	Generator  script.Generator
	Provider   tts.Provider
	Pools      voice.Pools
	Assembler  assembly.Assembler
	Authorizer *publish.Authorizer
	Publisher  *publish.Publisher
	Session    *publish.Session
	Policy     retry.Policy
	Rand       *rand.Rand
	Logger     *slog.Logger
	Progress   progress.Callback
	// Probe reports the playback length of the final artifact as "M:SS".
	Probe func(ctx context.Context, path string) string
}

// RunContext is everything one run produced. It is owned by Run and
// returned to the caller when the run ends, successfully or not.
type RunContext struct {
	ID         string
	Started    time.Time
	Brief      *brief.Brief
	Background *ingest.Background
	Script     string
	Lines      []script.Line
	Issues     []script.Issue
	Assignment voice.Assignment
	Clips      []tts.Clip
	Skipped    int
	FinalPath  string
	OutputPath string
	Duration   string
	SizeMB     float64
	Published  *publish.Result
}

type Runner struct {
	deps Deps
}

func New(deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Progress == nil {
		deps.Progress = progress.NopCallback
	}
	if deps.Policy.MaxAttempts == 0 {
		deps.Policy = tts.DefaultPolicy()
	}
	if deps.Probe == nil {
		deps.Probe = assembly.ProbeDuration
	}
	if deps.Session == nil {
		deps.Session = &publish.Session{}
	}
	return &Runner{deps: deps}
}

// Session returns the publish session the runner authorizes into.
func (r *Runner) Session() *publish.Session {
	return r.deps.Session
}

// Run executes every stage in order. Interrupts cancel the run between
// lines and abort running ffmpeg processes.
func (r *Runner) Run(ctx context.Context, opts Options) (*RunContext, error) {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.RunID == "" {
		opts.RunID = ulid.Make().String()
	}
	rc := &RunContext{
		ID:      opts.RunID,
		Started: time.Now(),
		Brief:   opts.Brief,
	}
	logger := r.deps.Logger.With("run_id", rc.ID)

	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", rc.ID))

	err := r.run(ctx, logger, rc, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.emit(progress.Event{Stage: progress.StageComplete, Message: "failed", Error: err, Elapsed: time.Since(rc.Started)})
	}
	return rc, err
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, rc *RunContext, opts Options) error {
	if opts.Brief == nil {
		return stageErr(progress.StageScript, "no brief", brief.ErrNoTopic)
	}
	if err := opts.Brief.Validate(); err != nil {
		return stageErr(progress.StageScript, "invalid brief", err)
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "audio_clips"
	}

	if removed := assembly.Cleanup(opts.WorkDir, logger); removed > 0 {
		logger.InfoContext(ctx, "removed stale artifacts", "dir", opts.WorkDir, "count", removed)
	}

	// Authorization codes are short-lived, so exchange before the slow stages.
	if opts.Publish != nil && !opts.ScriptOnly {
		if err := r.authorize(ctx, opts.Publish.AuthCode); err != nil {
			return err
		}
	}

	if err := r.loadScript(ctx, logger, rc, opts); err != nil {
		return err
	}
	if opts.ScriptOnly {
		if err := script.SaveScript(rc.Script, opts.ScriptPath); err != nil {
			return stageErr(progress.StageScript, "failed to save script", err)
		}
		r.emit(progress.Event{Stage: progress.StageComplete, Message: "Script saved", Percent: 1, OutputFile: opts.ScriptPath, Elapsed: time.Since(rc.Started)})
		return nil
	}

	lines, err := script.Extract(rc.Script)
	if err != nil {
		return stageErr(progress.StageScript, "no dialogue lines in script", err)
	}
	rc.Lines = lines
	rc.Issues = script.Review(lines, opts.Brief.Speakers)
	for _, issue := range rc.Issues {
		logger.WarnContext(ctx, "script review", "category", issue.Category, "issue", issue.Message)
	}

	r.emit(progress.NewEvent(progress.StageVoices, "Assigning voices...", 0, rc.Started))
	rc.Assignment = voice.NewAssigner(r.deps.Pools, r.deps.Rand).Assign(opts.Brief.Speakers)
	for _, l := range rc.Assignment.Lines {
		logger.InfoContext(ctx, "voice assigned", "assignment", l)
	}

	if err := r.synthesize(ctx, logger, rc, opts); err != nil {
		return err
	}
	if err := r.assemble(ctx, logger, rc, opts); err != nil {
		return err
	}

	if opts.Publish != nil {
		if err := r.publish(ctx, rc, opts); err != nil {
			return err
		}
	}

	r.emit(progress.Event{
		Stage:        progress.StageComplete,
		Message:      "done",
		Percent:      1,
		Elapsed:      time.Since(rc.Started),
		OutputFile:   rc.deliveredPath(),
		Duration:     rc.Duration,
		SizeMB:       rc.SizeMB,
		Skipped:      rc.Skipped,
		PermalinkURL: rc.permalink(),
	})
	logger.InfoContext(ctx, "run complete", "output", rc.deliveredPath(), "lines", len(rc.Lines), "skipped", rc.Skipped, "elapsed", time.Since(rc.Started).Round(time.Millisecond))
	return nil
}

func (r *Runner) authorize(ctx context.Context, code string) error {
	if code == "" {
		if r.deps.Session.Authorized() {
			return nil
		}
		return stageErr(progress.StagePublish, "publishing needs an authorization code", publish.ErrNotAuthorized)
	}
	if r.deps.Authorizer == nil {
		return stageErr(progress.StagePublish, "publishing is not configured", publish.ErrNotAuthorized)
	}
	ctx, span := tracer.Start(ctx, "pipeline.authorize")
	defer span.End()
	if err := r.deps.Session.Authorize(ctx, r.deps.Authorizer, code); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stageErr(progress.StagePublish, "authorization failed", err)
	}
	return nil
}

func (r *Runner) loadScript(ctx context.Context, logger *slog.Logger, rc *RunContext, opts Options) error {
	if opts.FromScript != "" {
		r.emit(progress.NewEvent(progress.StageScript, "Loading script...", 0, rc.Started))
		text, err := script.LoadScript(opts.FromScript)
		if err != nil {
			return stageErr(progress.StageScript, "failed to load script", err)
		}
		rc.Script = text
		return nil
	}

	if src := opts.Brief.Source; src != "" {
		r.emit(progress.NewEvent(progress.StageIngest, "Reading background source...", 0, rc.Started))
		ctx, span := tracer.Start(ctx, "pipeline.ingest")
		bg, err := ingest.Load(ctx, src)
		span.End()
		if err != nil {
			return stageErr(progress.StageIngest, "failed to read background source", err)
		}
		rc.Background = bg
		logger.InfoContext(ctx, "background loaded", "source", bg.Source, "words", bg.WordCount, "truncated", bg.Truncated)
	}

	if r.deps.Generator == nil {
		return stageErr(progress.StageScript, "no script generator configured", ErrScriptGeneration)
	}

	r.emit(progress.NewEvent(progress.StageScript, "Writing script...", 0, rc.Started))
	ctx, span := tracer.Start(ctx, "pipeline.script")
	defer span.End()

	var background string
	if rc.Background != nil {
		background = rc.Background.Text
	}
	text, err := r.deps.Generator.Generate(ctx, opts.Brief, background)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stageErr(progress.StageScript, "failed to generate script", errors.Join(ErrScriptGeneration, err))
	}
	rc.Script = text
	r.emit(progress.NewEvent(progress.StageScript, "Script ready", 1, rc.Started))
	return nil
}

func (r *Runner) synthesize(ctx context.Context, logger *slog.Logger, rc *RunContext, opts Options) error {
	ctx, span := tracer.Start(ctx, "pipeline.tts")
	defer span.End()
	span.SetAttributes(
		attribute.String("tts.provider", r.deps.Provider.Name()),
		attribute.Int("tts.lines", len(rc.Lines)),
	)

	synth := tts.NewSynthesizer(r.deps.Provider, r.deps.Policy, logger)
	synth.OnLine = func(done, total int, line script.Line) {
		e := progress.NewEvent(progress.StageTTS, fmt.Sprintf("Voicing %s", line.Speaker), float64(done)/float64(total), rc.Started)
		e.LineNum = done
		e.LineTotal = total
		r.emit(e)
	}

	clips, err := synth.SynthesizeAll(ctx, rc.Lines, rc.Assignment, opts.WorkDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stageErr(progress.StageTTS, "failed to synthesize audio", err)
	}
	rc.Clips = clips
	rc.Skipped = len(rc.Lines) - len(clips)
	span.SetAttributes(attribute.Int("tts.skipped", rc.Skipped))
	return nil
}

func (r *Runner) assemble(ctx context.Context, logger *slog.Logger, rc *RunContext, opts Options) error {
	r.emit(progress.NewEvent(progress.StageAssembly, "Assembling episode...", 0, rc.Started))
	ctx, span := tracer.Start(ctx, "pipeline.assembly")
	defer span.End()

	artist := opts.Artist
	if artist == "" {
		artist = "AI Podcast Generator"
	}
	final, err := r.deps.Assembler.Assemble(ctx, opts.WorkDir, assembly.Metadata{
		Title:  opts.Brief.Topic,
		Artist: artist,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stageErr(progress.StageAssembly, "failed to assemble episode", err)
	}
	rc.FinalPath = final
	assembly.Cleanup(opts.WorkDir, logger)

	if info, err := os.Stat(final); err == nil {
		rc.SizeMB = float64(info.Size()) / (1024 * 1024)
	}
	rc.Duration = r.deps.Probe(ctx, final)

	if opts.Output != "" {
		if err := copyFile(final, opts.Output); err != nil {
			return stageErr(progress.StageAssembly, "failed to copy episode", err)
		}
		rc.OutputPath = opts.Output
	}
	r.emit(progress.NewEvent(progress.StageAssembly, "Episode assembled", 1, rc.Started))
	return nil
}

func (r *Runner) publish(ctx context.Context, rc *RunContext, opts Options) error {
	if r.deps.Publisher == nil {
		return stageErr(progress.StagePublish, "publishing is not configured", publish.ErrNotAuthorized)
	}
	r.emit(progress.NewEvent(progress.StagePublish, "Uploading episode...", 0, rc.Started))
	ctx, span := tracer.Start(ctx, "pipeline.publish")
	defer span.End()

	po := opts.Publish
	title := po.Title
	if title == "" {
		title = opts.Brief.Topic
	}
	res, err := r.deps.Publisher.Publish(ctx, r.deps.Session, publish.Episode{
		Path:        rc.FinalPath,
		Title:       title,
		Description: po.Description,
		Status:      po.Status,
		Explicit:    po.Explicit,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stageErr(progress.StagePublish, "failed to publish episode", err)
	}
	rc.Published = res
	return nil
}

func (r *Runner) emit(e progress.Event) {
	r.deps.Progress(e)
}

func (rc *RunContext) deliveredPath() string {
	if rc.OutputPath != "" {
		return rc.OutputPath
	}
	return rc.FinalPath
}

func (rc *RunContext) permalink() string {
	if rc.Published == nil {
		return ""
	}
	return rc.Published.PermalinkURL
}

func copyFile(src, dst string) error {
	if abs, err := filepath.Abs(dst); err == nil {
		if srcAbs, err := filepath.Abs(src); err == nil && abs == srcAbs {
			return nil
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
