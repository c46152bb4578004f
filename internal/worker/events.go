package worker

import "github.com/book-expert/events"

// ImageUploadedEvent announces an image stored in the image bucket.
type ImageUploadedEvent struct {
	Header   events.EventHeader `json:"header"`
	ImageKey string             `json:"image_key"`
}

// TextDetectedEvent is the reply to ImageUploadedEvent.
type TextDetectedEvent struct {
	Header  events.EventHeader `json:"header"`
	Text    string             `json:"text"`
	Empty   bool               `json:"empty"`
	Level   string             `json:"level"`
	Message string             `json:"message"`
	Error   string             `json:"error,omitempty"`
}

// SummaryRequestedEvent asks for the current text to be summarized and spoken.
// An empty Voice keeps the current selection.
type SummaryRequestedEvent struct {
	Header events.EventHeader `json:"header"`
	Voice  string             `json:"voice,omitempty"`
}

// SpeechReadyEvent is the reply to SummaryRequestedEvent.
type SpeechReadyEvent struct {
	Header      events.EventHeader `json:"header"`
	Summary     string             `json:"summary"`
	Voice       string             `json:"voice"`
	AudioKey    string             `json:"audio_key,omitempty"`
	Message     string             `json:"message"`
	Diagnostics string             `json:"diagnostics,omitempty"`
	Error       string             `json:"error,omitempty"`
}
