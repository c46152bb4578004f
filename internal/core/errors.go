package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDetection indicates that the detection engine could not process the image.
	ErrDetection = errors.New("text detection failed")
	// ErrSummarization indicates that the remote summarization call failed.
	ErrSummarization = errors.New("summarization failed")
	// ErrSynthesis indicates that the synthesis process did not produce an artifact.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrInvalidImage indicates that the uploaded bytes are not a decodable image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrEmptyText indicates that an operation requiring text received none.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrUnsupportedVoice indicates that the voice is not part of the configured catalog.
	ErrUnsupportedVoice = errors.New("unsupported voice")
	// ErrNotReady indicates that a stage was triggered before its prerequisites were met.
	ErrNotReady = errors.New("pipeline is not ready for this action")
)

// SynthesisError carries the diagnostic output of a failed synthesis process.
type SynthesisError struct {
	Voice    Voice
	ExitCode int
	Stderr   string
	Err      error
}

func (e *SynthesisError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s (voice %s, exit code %d): %v", ErrSynthesis, e.Voice, e.ExitCode, e.Err)
	}

	return fmt.Sprintf("%s (voice %s, exit code %d): %v - stderr: %s",
		ErrSynthesis, e.Voice, e.ExitCode, e.Err, e.Stderr)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *SynthesisError) Unwrap() []error {
	return []error{ErrSynthesis, e.Err}
}
