// Package core defines the data model and the adapter contracts shared by the pipeline.
package core

import (
	"context"
	"image"
	"time"
)

// ObjectStore defines the interface for reading from a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// ImageAsset is an uploaded image: the raw bytes plus the decoded pixel buffer.
type ImageAsset struct {
	Data   []byte
	Image  image.Image
	Format string
	Width  int
	Height int
}

// Recognition is a single span reported by the detection engine.
type Recognition struct {
	Box        image.Rectangle
	Text       string
	Confidence float64
}

// SpeechArtifact describes an audio file produced by one synthesis call.
type SpeechArtifact struct {
	ID          string
	Path        string
	Voice       Voice
	Size        int64
	Duration    time.Duration
	SampleRate  int
	Diagnostics string
}

// TextDetector turns an image into a single flattened string.
// An empty string with a nil error means no text was found.
type TextDetector interface {
	Detect(ctx context.Context, img *ImageAsset) (string, error)
}

// Summarizer condenses detected text. Implementations are stateless per call.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SpeechJob is a handle on a synthesis running in the background.
type SpeechJob interface {
	Done() <-chan struct{}
	Wait() (*SpeechArtifact, error)
	Cancel()
}

// SpeechSynthesizer renders text as audio in the given voice.
// Start returns immediately; the result is collected through the job.
type SpeechSynthesizer interface {
	Start(ctx context.Context, text string, voice Voice) SpeechJob
}
