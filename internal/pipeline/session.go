package pipeline

import "github.com/book-expert/tara-service/internal/core"

// State is the position of a session in the pipeline.
type State int

// Session states in pipeline order. Comparisons rely on this ordering.
const (
	StateIdle State = iota
	StateImageLoaded
	StateTextDetectedEmpty
	StateTextDetected
	StateSummarized
	StateSpeechReady
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateImageLoaded:       "image_loaded",
	StateTextDetectedEmpty: "text_detected_empty",
	StateTextDetected:      "text_detected",
	StateSummarized:        "summarized",
	StateSpeechReady:       "speech_ready",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return "unknown"
	}

	return name
}

// Stage names the step an Outcome belongs to.
type Stage string

// Pipeline stages.
const (
	StageUpload     Stage = "upload"
	StageDetect     Stage = "detect"
	StageSummarize  Stage = "summarize"
	StageSynthesize Stage = "synthesize"
)

// Level is the severity a shell uses to render an Outcome.
type Level string

// Outcome levels.
const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Outcome is the user-visible result of one orchestrator operation.
type Outcome struct {
	Stage       Stage
	Level       Level
	Message     string
	Diagnostics string
	Err         error
	// Session is the session as the operation left it. It is nil on the
	// copy kept in Session.LastOutcome.
	Session *Session
}

// Failed reports whether the outcome ended the operation with an error.
func (o Outcome) Failed() bool {
	return o.Level == LevelError
}

// Session is the state of the single pipeline run.
type Session struct {
	State       State
	Image       *core.ImageAsset
	Text        string
	Summary     string
	Voice       core.Voice
	Artifact    *core.SpeechArtifact
	LastOutcome Outcome
}

// reset discards the image and everything derived from it. The voice selection survives.
func (s *Session) reset() {
	s.State = StateIdle
	s.Image = nil
	s.Text = ""
	s.Summary = ""
	s.Artifact = nil
}

func (s *Session) clone() Session {
	out := *s

	if s.Artifact != nil {
		artifact := *s.Artifact
		out.Artifact = &artifact
	}

	return out
}
