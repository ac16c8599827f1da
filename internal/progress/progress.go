package progress

import "time"

// Stage identifies which pipeline stage is active.
type Stage string

const (
	StageIngest   Stage = "ingest"
	StageScript   Stage = "script"
	StageVoices   Stage = "voices"
	StageTTS      Stage = "tts"
	StageAssembly Stage = "assembly"
	StagePublish  Stage = "publish"
	StageComplete Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage     Stage
	Message   string
	Percent   float64 // 0.0–1.0
	LineNum   int
	LineTotal int
	Elapsed   time.Duration
	Error     error
	// The fields below are set on StageComplete.
	OutputFile   string
	Duration     string // "M:SS"
	SizeMB       float64
	Skipped      int // lines that could not be voiced
	PermalinkURL string
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// stageWeights gives each stage its share of the bar. Synthesis dominates.
var stageWeights = []struct {
	stage Stage
	start float64
	span  float64
}{
	{StageIngest, 0.00, 0.05},
	{StageScript, 0.05, 0.15},
	{StageVoices, 0.20, 0.02},
	{StageTTS, 0.22, 0.63},
	{StageAssembly, 0.85, 0.10},
	{StagePublish, 0.95, 0.05},
	{StageComplete, 1.00, 0},
}

// Overall maps progress within a stage (0–1) to overall progress.
func Overall(stage Stage, within float64) float64 {
	if within < 0 {
		within = 0
	}
	if within > 1 {
		within = 1
	}
	for _, w := range stageWeights {
		if w.stage == stage {
			return w.start + w.span*within
		}
	}
	return 0
}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, within float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: Overall(stage, within),
		Elapsed: time.Since(start),
	}
}
