// Package pipeline sequences detection, summarization and synthesis for one session.
//
// The orchestrator owns the session state and maps adapter failures to
// Outcome values the presentation shells render. Every operation runs under a
// single mutex so stages never overlap.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/core"
	"github.com/book-expert/tara-service/internal/imageasset"
	"github.com/book-expert/tara-service/internal/metrics"
)

// User-visible messages.
const (
	MsgUploadPrompt    = "Please upload an image to detect text."
	MsgTextDetected    = "Text detected in the image."
	MsgNoTextDetected  = "No text detected in the image."
	MsgSpeechGenerated = "Speech generated successfully!"
	MsgSynthesisFailed = "Error generating speech"
	MsgInvalidImage    = "The uploaded file is not a readable image. Please upload a PNG or JPEG."
	MsgDetectionFailed = "Text detection failed. Please upload the image again."
	MsgSummaryFailed   = "Summarization failed. Please try again."
	MsgNotReady        = "There is no detected text to summarize."
	MsgSynthCancelled  = "Speech generation was cancelled."
)

// Orchestrator drives a single session through the pipeline states.
//
// run serializes LoadImage and Summarize. mu only guards the session and is
// never held across an adapter call, so snapshots and voice changes stay
// responsive while a stage is running.
type Orchestrator struct {
	run     sync.Mutex
	mu      sync.Mutex
	session Session

	detector    core.TextDetector
	summarizer  core.Summarizer
	synthesizer core.SpeechSynthesizer
	voices      *core.VoiceCatalog
	log         *logger.Logger

	jobMu sync.Mutex
	job   core.SpeechJob
}

// New creates an Orchestrator in the Idle state with the catalog's default voice selected.
func New(
	detector core.TextDetector,
	summarizer core.Summarizer,
	synthesizer core.SpeechSynthesizer,
	voices *core.VoiceCatalog,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		session: Session{
			State: StateIdle,
			Voice: voices.Default(),
			LastOutcome: Outcome{
				Stage:   StageUpload,
				Level:   LevelInfo,
				Message: MsgUploadPrompt,
			},
		},
		detector:    detector,
		summarizer:  summarizer,
		synthesizer: synthesizer,
		voices:      voices,
		log:         log,
	}
}

// Voices lists the selectable voices.
func (o *Orchestrator) Voices() []core.Voice {
	return o.voices.Voices()
}

// Snapshot returns a copy of the session.
func (o *Orchestrator) Snapshot() Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.session.clone()
}

// SelectVoice changes the voice used by the next synthesis.
func (o *Orchestrator) SelectVoice(name string) error {
	voice, err := o.voices.Validate(name)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.session.Voice = voice
	o.log.Info("Voice set to '%s'", voice)

	return nil
}

// LoadImage replaces the session image and runs detection on it.
// All downstream state is discarded before anything else happens.
func (o *Orchestrator) LoadImage(ctx context.Context, data []byte) Outcome {
	o.run.Lock()
	defer o.run.Unlock()

	o.update(func(s *Session) { s.reset() })

	started := time.Now()

	asset, err := imageasset.Decode(data)
	if err != nil {
		return o.observe(StageUpload, started, Outcome{Stage: StageUpload, Level: LevelError, Message: MsgInvalidImage, Err: err})
	}

	o.update(func(s *Session) {
		s.Image = asset
		s.State = StateImageLoaded
	})
	o.log.Info("Loaded %s image %dx%d (%d bytes)", asset.Format, asset.Width, asset.Height, len(asset.Data))

	started = time.Now()

	detected, err := o.detector.Detect(ctx, asset)
	if err != nil {
		o.update(func(s *Session) { s.reset() })

		return o.observe(StageDetect, started, Outcome{
			Stage:   StageDetect,
			Level:   LevelError,
			Message: MsgDetectionFailed,
			Err:     err,
		})
	}

	if detected == "" {
		o.update(func(s *Session) { s.State = StateTextDetectedEmpty })

		return o.observe(StageDetect, started, Outcome{
			Stage:   StageDetect,
			Level:   LevelWarning,
			Message: MsgNoTextDetected,
		})
	}

	o.update(func(s *Session) {
		s.Text = detected
		s.State = StateTextDetected
	})

	return o.observe(StageDetect, started, Outcome{
		Stage:   StageDetect,
		Level:   LevelInfo,
		Message: MsgTextDetected,
	})
}

// Summarize condenses the detected text and immediately synthesizes the summary
// with the voice selected once summarization is done.
func (o *Orchestrator) Summarize(ctx context.Context) Outcome {
	o.run.Lock()
	defer o.run.Unlock()

	var (
		ready bool
		input string
	)

	o.update(func(s *Session) {
		ready = s.State >= StateTextDetected && s.Text != ""
		if !ready {
			return
		}

		// A retry starts again from the detected text.
		input = s.Text
		s.State = StateTextDetected
		s.Summary = ""
		s.Artifact = nil
	})

	if !ready {
		return o.record(Outcome{
			Stage:   StageSummarize,
			Level:   LevelError,
			Message: MsgNotReady,
			Err:     core.ErrNotReady,
		})
	}

	started := time.Now()

	summary, err := o.summarizer.Summarize(ctx, input)
	if err != nil {
		return o.observe(StageSummarize, started, Outcome{
			Stage:   StageSummarize,
			Level:   LevelError,
			Message: MsgSummaryFailed,
			Err:     err,
		})
	}

	var voice core.Voice

	o.update(func(s *Session) {
		s.Summary = summary
		s.State = StateSummarized
		voice = s.Voice
	})
	o.observe(StageSummarize, started, Outcome{Stage: StageSummarize, Level: LevelInfo})

	return o.synthesize(ctx, summary, voice)
}

// CancelSynthesis stops an in-flight synthesis. It reports whether one was running.
func (o *Orchestrator) CancelSynthesis() bool {
	o.jobMu.Lock()
	defer o.jobMu.Unlock()

	if o.job == nil {
		return false
	}

	o.job.Cancel()

	return true
}

func (o *Orchestrator) synthesize(ctx context.Context, summary string, voice core.Voice) Outcome {
	started := time.Now()
	job := o.synthesizer.Start(ctx, summary, voice)

	o.jobMu.Lock()
	o.job = job
	o.jobMu.Unlock()

	defer func() {
		o.jobMu.Lock()
		o.job = nil
		o.jobMu.Unlock()
	}()

	select {
	case <-job.Done():
	case <-ctx.Done():
		job.Cancel()
	}

	artifact, err := job.Wait()
	if err != nil {
		return o.observe(StageSynthesize, started, synthesisFailure(err))
	}

	o.update(func(s *Session) {
		s.Artifact = artifact
		s.State = StateSpeechReady
	})
	metrics.LastAudioSeconds.Set(artifact.Duration.Seconds())

	return o.observe(StageSynthesize, started, Outcome{
		Stage:       StageSynthesize,
		Level:       LevelInfo,
		Message:     MsgSpeechGenerated,
		Diagnostics: artifact.Diagnostics,
	})
}

func synthesisFailure(err error) Outcome {
	outcome := Outcome{
		Stage:   StageSynthesize,
		Level:   LevelError,
		Message: fmt.Sprintf("%s: %v", MsgSynthesisFailed, err),
		Err:     err,
	}

	if errors.Is(err, context.Canceled) {
		outcome.Message = MsgSynthCancelled
	}

	var synthErr *core.SynthesisError
	if errors.As(err, &synthErr) {
		outcome.Diagnostics = synthErr.Stderr
	}

	return outcome
}

func (o *Orchestrator) observe(stage Stage, started time.Time, outcome Outcome) Outcome {
	metrics.ObserveStage(string(stage), string(outcome.Level), time.Since(started))

	if outcome.Message == "" {
		return outcome
	}

	return o.record(outcome)
}

// record logs the outcome, stores it as the last outcome and attaches the
// session as the operation left it.
func (o *Orchestrator) record(outcome Outcome) Outcome {
	switch outcome.Level {
	case LevelError:
		o.log.Error("%s: %s: %v", outcome.Stage, outcome.Message, outcome.Err)
	case LevelWarning:
		o.log.Warn("%s: %s", outcome.Stage, outcome.Message)
	case LevelInfo:
		o.log.Info("%s: %s", outcome.Stage, outcome.Message)
	}

	o.mu.Lock()
	o.session.LastOutcome = outcome
	snapshot := o.session.clone()
	o.mu.Unlock()

	outcome.Session = &snapshot

	return outcome
}

func (o *Orchestrator) update(apply func(s *Session)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	apply(&o.session)
}
