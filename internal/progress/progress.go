package progress

import "time"

// Stage identifies which generation step is active.
type Stage string

const (
	StageExtract    Stage = "extract"
	StageSummarize  Stage = "summarize"
	StageVoice      Stage = "voice"
	StageTranslate  Stage = "translate"
	StageSynthesize Stage = "synthesize"
	StageStore      Stage = "store"
	StageComplete   Stage = "complete"
)

// Event carries progress information from the studio to the renderer.
type Event struct {
	Stage   Stage
	Message string
	Percent float64 // 0.0–1.0
	Elapsed time.Duration
	Error   error
	// Voice is set once the voice has been resolved.
	Voice string
	// OutputPath is set on StageComplete with the stored clip location.
	OutputPath string
	// SizeKB is the clip size, set on StageComplete.
	SizeKB float64
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}
