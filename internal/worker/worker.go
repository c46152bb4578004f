// Package worker exposes the pipeline over NATS request/reply.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/core"
	"github.com/book-expert/tara-service/internal/pipeline"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	detectTimeout    = 2 * time.Minute
	summarizeTimeout = 10 * time.Minute
	audioContentType = "audio/wav"
)

// Pipeline is the part of the orchestrator the worker drives.
type Pipeline interface {
	LoadImage(ctx context.Context, data []byte) pipeline.Outcome
	SelectVoice(name string) error
	Summarize(ctx context.Context) pipeline.Outcome
}

// AudioStore receives finished artifacts. Only the latest one is kept.
type AudioStore interface {
	UploadFile(ctx context.Context, key, path, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Subjects names the request subjects the worker listens on.
type Subjects struct {
	ImageUploaded    string
	SummaryRequested string
}

// NatsWorker answers pipeline requests on NATS.
type NatsWorker struct {
	natsConnection *nats.Conn
	subjects       Subjects
	images         core.ObjectStore
	audio          AudioStore
	pipeline       Pipeline
	log            *logger.Logger

	mu           sync.Mutex
	lastAudioKey string
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subjects Subjects,
	images core.ObjectStore,
	audio AudioStore,
	pipe Pipeline,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subjects:       subjects,
		images:         images,
		audio:          audio,
		pipeline:       pipe,
		log:            log,
	}
}

// Run subscribes to both subjects and blocks until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	imageSub, err := w.natsConnection.Subscribe(w.subjects.ImageUploaded, w.handleImageUploaded)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subjects.ImageUploaded, err)
	}

	summarySub, err := w.natsConnection.Subscribe(w.subjects.SummaryRequested, w.handleSummaryRequested)
	if err != nil {
		_ = imageSub.Unsubscribe()

		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subjects.SummaryRequested, err)
	}

	w.log.Info("Listening on %s and %s", w.subjects.ImageUploaded, w.subjects.SummaryRequested)

	<-ctx.Done()

	for _, sub := range []*nats.Subscription{imageSub, summarySub} {
		drainErr := sub.Drain()
		if drainErr != nil {
			return fmt.Errorf("failed to drain subscription %s: %w", sub.Subject, drainErr)
		}
	}

	return nil
}

func (w *NatsWorker) handleImageUploaded(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
	defer cancel()

	var event ImageUploadedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal image event: %v", err)

		return
	}

	reply := &TextDetectedEvent{Header: replyHeader(event.Header), Level: string(pipeline.LevelError)}

	data, err := w.images.Download(ctx, event.ImageKey)
	if err != nil {
		w.log.Error("Failed to download image '%s' for workflow %s: %v", event.ImageKey, event.Header.WorkflowID, err)
		reply.Message = "Failed to fetch the uploaded image."
		reply.Error = err.Error()
		w.respond(msg, reply)

		return
	}

	outcome := w.pipeline.LoadImage(ctx, data)
	session := sessionOf(outcome)

	reply.Text = session.Text
	reply.Empty = session.State == pipeline.StateTextDetectedEmpty
	reply.Level = string(outcome.Level)
	reply.Message = outcome.Message

	if outcome.Err != nil {
		reply.Error = outcome.Err.Error()
	}

	w.respond(msg, reply)
}

func (w *NatsWorker) handleSummaryRequested(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
	defer cancel()

	var event SummaryRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal summary event: %v", err)

		return
	}

	reply := &SpeechReadyEvent{Header: replyHeader(event.Header)}

	if event.Voice != "" {
		voiceErr := w.pipeline.SelectVoice(event.Voice)
		if voiceErr != nil {
			reply.Message = voiceErr.Error()
			reply.Error = voiceErr.Error()
			w.respond(msg, reply)

			return
		}
	}

	outcome := w.pipeline.Summarize(ctx)
	session := sessionOf(outcome)

	reply.Summary = session.Summary
	reply.Voice = string(session.Voice)
	reply.Message = outcome.Message
	reply.Diagnostics = outcome.Diagnostics

	if outcome.Err != nil {
		reply.Error = outcome.Err.Error()
		w.respond(msg, reply)

		return
	}

	if session.Artifact != nil {
		audioKey := session.Artifact.ID + ".wav"

		uploadErr := w.audio.UploadFile(ctx, audioKey, session.Artifact.Path, audioContentType)
		if uploadErr != nil {
			w.log.Error("Failed to upload audio '%s' for workflow %s: %v", audioKey, event.Header.WorkflowID, uploadErr)
			reply.Error = fmt.Sprintf("failed to upload audio: %v", uploadErr)
		} else {
			reply.AudioKey = audioKey
			w.retireAudio(ctx, audioKey)
		}
	}

	w.respond(msg, reply)
}

// retireAudio deletes the object the new upload supersedes.
func (w *NatsWorker) retireAudio(ctx context.Context, latest string) {
	w.mu.Lock()
	previous := w.lastAudioKey
	w.lastAudioKey = latest
	w.mu.Unlock()

	if previous == "" || previous == latest {
		return
	}

	deleteErr := w.audio.Delete(ctx, previous)
	if deleteErr != nil {
		w.log.Warn("Failed to delete superseded audio '%s': %v", previous, deleteErr)
	}
}

// sessionOf returns the session the operation left behind.
func sessionOf(outcome pipeline.Outcome) pipeline.Session {
	if outcome.Session == nil {
		return pipeline.Session{}
	}

	return *outcome.Session
}

func replyHeader(request events.EventHeader) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: request.WorkflowID,
		EventID:    uuid.NewString(),
		UserID:     request.UserID,
		TenantID:   request.TenantID,
	}
}

func (w *NatsWorker) respond(msg *nats.Msg, reply any) {
	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply event: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply event: %v", err)
	}
}
