package core

import (
	"fmt"
	"slices"
)

// Voice is a speaker identifier understood by the synthesis model.
type Voice string

// DefaultVoices is the speaker set shipped with the reference model.
var DefaultVoices = []Voice{"wibowo", "ardi", "gadis"}

// VoiceCatalog is the closed set of speakers a deployment accepts.
type VoiceCatalog struct {
	voices []Voice
}

// NewVoiceCatalog builds a catalog from configured names, skipping blanks and duplicates.
// An empty list falls back to DefaultVoices.
func NewVoiceCatalog(names []string) *VoiceCatalog {
	voices := make([]Voice, 0, len(names))

	for _, name := range names {
		voice := Voice(name)
		if name == "" || slices.Contains(voices, voice) {
			continue
		}

		voices = append(voices, voice)
	}

	if len(voices) == 0 {
		voices = append(voices, DefaultVoices...)
	}

	return &VoiceCatalog{voices: voices}
}

// Voices returns a copy of the catalog in configured order.
func (c *VoiceCatalog) Voices() []Voice {
	return slices.Clone(c.voices)
}

// Default returns the first configured voice.
func (c *VoiceCatalog) Default() Voice {
	return c.voices[0]
}

// Validate resolves a name against the catalog.
func (c *VoiceCatalog) Validate(name string) (Voice, error) {
	voice := Voice(name)
	if !slices.Contains(c.voices, voice) {
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedVoice, name)
	}

	return voice, nil
}
