// Package bootstrap assembles the pipeline from configuration for the binaries.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/config"
	"github.com/book-expert/tara-service/internal/core"
	"github.com/book-expert/tara-service/internal/objectstore"
	"github.com/book-expert/tara-service/internal/ocr"
	"github.com/book-expert/tara-service/internal/ocr/tesseract"
	"github.com/book-expert/tara-service/internal/pipeline"
	"github.com/book-expert/tara-service/internal/summarizer"
	"github.com/book-expert/tara-service/internal/tts"
)

// Adapters groups the three capabilities the orchestrator sequences.
type Adapters struct {
	Detector    core.TextDetector
	Summarizer  core.Summarizer
	Synthesizer core.SpeechSynthesizer
}

// NewAdapters builds the production adapters: Tesseract, Gemini and the Coqui CLI.
func NewAdapters(cfg *config.Config, log *logger.Logger) (*Adapters, error) {
	synthesizer, err := tts.New(SynthesizerConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	return &Adapters{
		Detector:    ocr.NewDetector(tesseract.NewEngine(), cfg.OCR.Languages, log),
		Summarizer:  summarizer.NewClient(SummarizerConfig(cfg), log),
		Synthesizer: synthesizer,
	}, nil
}

// NewOrchestrator wires adapters into an orchestrator using the configured voice catalog.
func NewOrchestrator(cfg *config.Config, adapters *Adapters, log *logger.Logger) *pipeline.Orchestrator {
	return pipeline.New(
		adapters.Detector,
		adapters.Summarizer,
		adapters.Synthesizer,
		core.NewVoiceCatalog(cfg.TTS.Voices),
		log,
	)
}

// SummarizerConfig maps the [summarizer] section onto the client settings.
func SummarizerConfig(cfg *config.Config) summarizer.Config {
	return summarizer.Config{
		APIKey:  cfg.Summarizer.APIKey,
		Model:   cfg.Summarizer.Model,
		BaseURL: cfg.Summarizer.BaseURL,
		Timeout: time.Duration(cfg.Summarizer.TimeoutSeconds) * time.Second,
	}
}

// SynthesizerConfig maps the [tts] and [paths] sections onto the synthesizer settings.
func SynthesizerConfig(cfg *config.Config) tts.Config {
	return tts.Config{
		BinaryPath:   cfg.TTS.BinaryPath,
		ModelPath:    cfg.TTS.ModelPath,
		ConfigPath:   cfg.TTS.ConfigPath,
		SpeakersPath: cfg.TTS.SpeakersPath,
		OutputDir:    cfg.Paths.OutputDir,
		Timeout:      time.Duration(cfg.TTS.TimeoutSeconds) * time.Second,
	}
}

// ImageBucketConfig describes the bucket uploaded images are read from.
func ImageBucketConfig(cfg *config.Config) objectstore.BucketConfig {
	return objectstore.BucketConfig{Name: cfg.NATS.ImageObjectStoreBucket}
}

// AudioBucketConfig describes the bucket synthesized audio is published to.
func AudioBucketConfig(cfg *config.Config) objectstore.BucketConfig {
	return objectstore.BucketConfig{
		Name: cfg.NATS.AudioObjectStoreBucket,
		TTL:  time.Duration(cfg.NATS.AudioTTLSeconds) * time.Second,
	}
}
