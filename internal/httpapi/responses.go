package httpapi

import "github.com/book-expert/tara-service/internal/pipeline"

type errorResponse struct {
	Error string `json:"error"`
}

type imageResponse struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type audioResponse struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	Voice           string  `json:"voice"`
	Size            int64   `json:"size"`
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
}

type sessionResponse struct {
	State   string         `json:"state"`
	Voice   string         `json:"voice"`
	Text    string         `json:"text"`
	Summary string         `json:"summary"`
	Image   *imageResponse `json:"image,omitempty"`
	Audio   *audioResponse `json:"audio,omitempty"`
	Message string         `json:"message"`
	Level   string         `json:"level"`
}

type outcomeResponse struct {
	Stage       string           `json:"stage"`
	Level       string           `json:"level"`
	Message     string           `json:"message"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Error       string           `json:"error,omitempty"`
	Session     *sessionResponse `json:"session,omitempty"`
}

func newSessionResponse(session pipeline.Session) sessionResponse {
	resp := sessionResponse{
		State:   session.State.String(),
		Voice:   string(session.Voice),
		Text:    session.Text,
		Summary: session.Summary,
		Message: session.LastOutcome.Message,
		Level:   string(session.LastOutcome.Level),
	}

	if session.Image != nil {
		resp.Image = &imageResponse{
			Format: session.Image.Format,
			Width:  session.Image.Width,
			Height: session.Image.Height,
		}
	}

	if session.Artifact != nil {
		resp.Audio = &audioResponse{
			ID:              session.Artifact.ID,
			URL:             "/v1/audio",
			Voice:           string(session.Artifact.Voice),
			Size:            session.Artifact.Size,
			DurationSeconds: session.Artifact.Duration.Seconds(),
			SampleRate:      session.Artifact.SampleRate,
		}
	}

	return resp
}

func newOutcomeResponse(outcome pipeline.Outcome) outcomeResponse {
	resp := outcomeResponse{
		Stage:       string(outcome.Stage),
		Level:       string(outcome.Level),
		Message:     outcome.Message,
		Diagnostics: outcome.Diagnostics,
	}

	if outcome.Session != nil {
		session := newSessionResponse(*outcome.Session)
		resp.Session = &session
	}

	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}

	return resp
}
