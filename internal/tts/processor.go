// Package tts drives the external speech synthesis process.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/core"
	"github.com/book-expert/tara-service/internal/tts/audio"
	"github.com/book-expert/tara-service/internal/tts/text"
	"github.com/google/uuid"
)

const (
	artifactExt     = ".wav"
	tempPrefix      = ".tmp-"
	defaultTimeout  = 5 * time.Minute
	processWaitTail = 2 * time.Second
	outputDirPerm   = 0o750
)

var (
	// ErrBinaryPathEmpty indicates that no synthesis executable is configured.
	ErrBinaryPathEmpty = errors.New("tts binary path cannot be empty")
	// ErrOutputDirEmpty indicates that no artifact directory is configured.
	ErrOutputDirEmpty = errors.New("tts output directory cannot be empty")
)

// Config holds the settings for the synthesis process.
type Config struct {
	BinaryPath   string
	ModelPath    string
	ConfigPath   string
	SpeakersPath string
	OutputDir    string
	Timeout      time.Duration
}

// Synthesizer implements core.SpeechSynthesizer by running the Coqui tts CLI.
type Synthesizer struct {
	config       Config
	log          *logger.Logger
	preprocessor *text.Preprocessor

	mu        sync.Mutex
	published string
}

// New creates a Synthesizer and ensures the output directory exists.
func New(cfg Config, log *logger.Logger) (*Synthesizer, error) {
	if cfg.BinaryPath == "" {
		return nil, ErrBinaryPathEmpty
	}

	if cfg.OutputDir == "" {
		return nil, ErrOutputDirEmpty
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	err := os.MkdirAll(cfg.OutputDir, outputDirPerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create output directory '%s': %w", cfg.OutputDir, err)
	}

	return &Synthesizer{
		config:       cfg,
		log:          log,
		preprocessor: text.NewPreprocessor(),
	}, nil
}

// Synthesize runs one synthesis and blocks until it finishes.
func (s *Synthesizer) Synthesize(ctx context.Context, input string, voice core.Voice) (*core.SpeechArtifact, error) {
	return s.Start(ctx, input, voice).Wait()
}

// Start launches a synthesis in the background and returns its handle.
func (s *Synthesizer) Start(ctx context.Context, input string, voice core.Voice) core.SpeechJob {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	job := newJob(cancel)

	prepared := s.preprocessor.PrepareForSpeech(input)
	if prepared == "" {
		job.finish(nil, &core.SynthesisError{Voice: voice, ExitCode: -1, Err: core.ErrEmptyText})

		return job
	}

	go func() {
		job.finish(s.run(runCtx, prepared, voice))
	}()

	return job
}

func (s *Synthesizer) args(input string, voice core.Voice, outPath string) []string {
	args := []string{
		"--text", input,
		"--model_path", s.config.ModelPath,
		"--config_path", s.config.ConfigPath,
	}

	if s.config.SpeakersPath != "" {
		args = append(args, "--speakers_file_path", s.config.SpeakersPath)
	}

	return append(args, "--speaker_idx", string(voice), "--out_path", outPath)
}

func (s *Synthesizer) run(ctx context.Context, input string, voice core.Voice) (*core.SpeechArtifact, error) {
	id := uuid.NewString()
	tempPath := filepath.Join(s.config.OutputDir, tempPrefix+id+artifactExt)
	finalPath := filepath.Join(s.config.OutputDir, id+artifactExt)

	defer s.removeIfExists(tempPath)

	var stdout, stderr bytes.Buffer

	// #nosec G204 -- the binary comes from configuration and voice is validated against the catalog
	cmd := exec.CommandContext(ctx, s.config.BinaryPath, s.args(input, voice, tempPath)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = processWaitTail

	started := time.Now()
	runErr := cmd.Run()
	diagnostics := strings.TrimSpace(stderr.String())

	if runErr != nil {
		synthErr := &core.SynthesisError{Voice: voice, ExitCode: -1, Stderr: diagnostics, Err: runErr}

		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			synthErr.ExitCode = exitErr.ExitCode()
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			synthErr.Err = fmt.Errorf("%w: %w", ctxErr, runErr)
		}

		s.log.Error("Synthesis with voice '%s' failed: %v", voice, synthErr)

		return nil, synthErr
	}

	info, inspectErr := audio.Inspect(tempPath)
	if inspectErr != nil {
		s.log.Error("Synthesis with voice '%s' produced no usable audio: %v", voice, inspectErr)

		return nil, &core.SynthesisError{Voice: voice, Stderr: diagnostics, Err: inspectErr}
	}

	renameErr := os.Rename(tempPath, finalPath)
	if renameErr != nil {
		return nil, &core.SynthesisError{
			Voice:  voice,
			Stderr: diagnostics,
			Err:    fmt.Errorf("failed to publish artifact: %w", renameErr),
		}
	}

	if diagnostics != "" {
		s.log.Warn("Synthesis stderr for artifact %s: %s", id, diagnostics)
	}

	s.log.Info("Synthesized %s of audio with voice '%s' in %s (stdout %d bytes)",
		info.Duration, voice, time.Since(started).Round(time.Millisecond), stdout.Len())

	replaceErr := s.replacePublished(finalPath)
	if replaceErr != nil {
		s.log.Warn("Failed to retire previous artifact: %v", replaceErr)
	}

	return &core.SpeechArtifact{
		ID:          id,
		Path:        finalPath,
		Voice:       voice,
		Size:        info.Size,
		Duration:    info.Duration,
		SampleRate:  info.SampleRate,
		Diagnostics: diagnostics,
	}, nil
}

func (s *Synthesizer) removeIfExists(path string) {
	removeErr := os.Remove(path)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		s.log.Warn("Failed to remove temp file '%s': %v", path, removeErr)
	}
}
