// Package core_test tests the shared data model.
package core_test

import (
	"errors"
	"testing"

	"github.com/book-expert/tara-service/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errExit = errors.New("exit status 1")

func TestVoiceCatalog_DefaultsWhenEmpty(t *testing.T) {
	t.Parallel()

	catalog := core.NewVoiceCatalog(nil)

	assert.Equal(t, core.DefaultVoices, catalog.Voices())
	assert.Equal(t, core.Voice("wibowo"), catalog.Default())
}

func TestVoiceCatalog_SkipsBlanksAndDuplicates(t *testing.T) {
	t.Parallel()

	catalog := core.NewVoiceCatalog([]string{"gadis", "", "ardi", "gadis"})

	assert.Equal(t, []core.Voice{"gadis", "ardi"}, catalog.Voices())
	assert.Equal(t, core.Voice("gadis"), catalog.Default())
}

func TestVoiceCatalog_Validate(t *testing.T) {
	t.Parallel()

	catalog := core.NewVoiceCatalog(nil)

	voice, err := catalog.Validate("ardi")
	require.NoError(t, err)
	assert.Equal(t, core.Voice("ardi"), voice)

	_, err = catalog.Validate("Ardi")
	require.ErrorIs(t, err, core.ErrUnsupportedVoice)

	_, err = catalog.Validate("")
	require.ErrorIs(t, err, core.ErrUnsupportedVoice)
}

func TestSynthesisError_Unwrap(t *testing.T) {
	t.Parallel()

	var err error = &core.SynthesisError{
		Voice:    "gadis",
		ExitCode: 1,
		Stderr:   "speaker not found",
		Err:      errExit,
	}

	require.ErrorIs(t, err, core.ErrSynthesis)
	require.ErrorIs(t, err, errExit)

	var synthErr *core.SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, "speaker not found", synthErr.Stderr)
	assert.Contains(t, err.Error(), "voice gadis")
	assert.Contains(t, err.Error(), "speaker not found")
}
