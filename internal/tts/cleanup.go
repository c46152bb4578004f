package tts

import (
	"errors"
	"fmt"
	"os"
)

// replacePublished records latest as this synthesizer's current artifact and
// removes the one it supersedes. Artifacts published by other synthesizers
// sharing the directory are never touched.
func (s *Synthesizer) replacePublished(latest string) error {
	s.mu.Lock()
	previous := s.published
	s.published = latest
	s.mu.Unlock()

	if previous == "" || previous == latest {
		return nil
	}

	err := os.Remove(previous)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove previous artifact '%s': %w", previous, err)
	}

	return nil
}
